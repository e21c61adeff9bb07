// Copyright 2025 The Jafka Authors.

package logstore

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jafka-project/jafka/internal/logmgr"
	"github.com/jafka-project/jafka/pkg/compression"
)

// segmentHandle adapts the package-private segment type to the
// logmgr.Segment contract consumed by the retention engine.
type segmentHandle struct{ s *segment }

func (h segmentHandle) LastModified() int64 { return h.s.lastModified() }
func (h segmentHandle) SizeBytes() int64    { return h.s.sizeBytes() }
func (h segmentHandle) Path() string        { return h.s.path() }
func (h segmentHandle) Delete() (bool, error) { return h.s.delete() }

// StrategyProvider supplies the currently-installed rolling strategy; Log
// consults it on every append rather than caching a snapshot, so a
// Manager.SetRollingStrategy call takes effect on Logs constructed
// earlier too.
type StrategyProvider func() logmgr.RollingStrategy

// Config configures a Log.
type Config struct {
	Dir             string
	Topic           string
	Partition       int
	MaxSegmentBytes int64
	Codec           compression.Type
	Strategy        StrategyProvider
	Recover         bool

	// FlushEveryNMessages, when > 0, triggers an internal best-effort
	// flush of the active segment every N appends, independent of the
	// manager's time-based flush scheduler.
	FlushEveryNMessages int
}

// Log is the concrete default implementation of the logmgr.Log contract:
// an ordered sequence of segment files living under Dir, with exactly one
// active (writable) tail segment at a time.
type Log struct {
	mu sync.RWMutex

	dir       string
	topic     string
	partition int

	maxSegmentBytes int64
	codec           compression.Type
	strategy        StrategyProvider

	segments []*segment // ascending base offset; last element is active
	closed   bool

	lastFlushedMs atomic.Int64

	flushEveryNMessages int
	appendsSinceFlush   int
}

// NewLog opens or creates the Log backing cfg.Dir. When cfg.Recover is
// true, a truncated trailing record (or an index whose entry count
// disagrees with the data file) in the most recent segment is detected and
// repaired before the segment is handed back to the registry.
func NewLog(cfg Config) (*Log, error) {
	l := &Log{
		dir:                 cfg.Dir,
		topic:               cfg.Topic,
		partition:           cfg.Partition,
		maxSegmentBytes:     cfg.MaxSegmentBytes,
		codec:               cfg.Codec,
		strategy:            cfg.Strategy,
		flushEveryNMessages: cfg.FlushEveryNMessages,
	}
	l.lastFlushedMs.Store(time.Now().UnixMilli())

	offsets, err := existingSegmentOffsets(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("list existing segments: %w", err)
	}

	for _, off := range offsets {
		s, err := newSegment(segmentConfig{Dir: cfg.Dir, BaseOffset: off, MaxBytes: cfg.MaxSegmentBytes})
		if err != nil {
			return nil, fmt.Errorf("open segment at offset %d: %w", off, err)
		}
		l.segments = append(l.segments, s)
	}

	if cfg.Recover && len(l.segments) > 0 {
		if err := repairTail(l.segments[len(l.segments)-1]); err != nil {
			return nil, fmt.Errorf("recover tail segment: %w", err)
		}
	}

	for i, s := range l.segments {
		if i < len(l.segments)-1 {
			s.sealed = true
		}
	}

	if len(l.segments) == 0 {
		s, err := newSegment(segmentConfig{Dir: cfg.Dir, BaseOffset: 0, MaxBytes: cfg.MaxSegmentBytes})
		if err != nil {
			return nil, fmt.Errorf("create initial segment: %w", err)
		}
		l.segments = append(l.segments, s)
	}

	return l, nil
}

func existingSegmentOffsets(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var offsets []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		offStr := strings.TrimSuffix(name, ".log")
		off, err := strconv.ParseInt(offStr, 10, 64)
		if err != nil {
			continue
		}
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets, nil
}

func (l *Log) active() *segment {
	return l.segments[len(l.segments)-1]
}

// Append writes a record to the active segment, rolling to a new segment
// first if the installed RollingStrategy says to.
func (l *Log) Append(key, value []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, logmgr.ErrLogClosed
	}

	active := l.active()
	shouldRoll := active.isFull()
	if l.strategy != nil {
		if strategy := l.strategy(); strategy != nil {
			shouldRoll = shouldRoll || strategy.ShouldRoll(segmentHandle{active})
		}
	}
	if shouldRoll {
		if err := l.roll(); err != nil {
			return 0, err
		}
		active = l.active()
	}

	record := &Record{Timestamp: time.Now().UnixMilli(), Key: key, Value: value}
	offset, err := active.append(record)
	if err != nil {
		return 0, err
	}

	if l.flushEveryNMessages > 0 {
		l.appendsSinceFlush++
		if l.appendsSinceFlush >= l.flushEveryNMessages {
			l.appendsSinceFlush = 0
			// Best-effort: a failed opportunistic sync here is not fatal,
			// unlike the scheduler-driven Flush. The next scheduled Flush
			// tick still provides the durability guarantee.
			_ = active.flush()
		}
	}
	return offset, nil
}

func (l *Log) roll() error {
	prev := l.active()
	if err := prev.seal(l.codec); err != nil {
		return fmt.Errorf("seal segment: %w", err)
	}

	next, err := newSegment(segmentConfig{Dir: l.dir, BaseOffset: prev.nextOffset, MaxBytes: l.maxSegmentBytes})
	if err != nil {
		return fmt.Errorf("roll to new segment: %w", err)
	}
	l.segments = append(l.segments, next)
	return nil
}

// Read returns the record at offset.
func (l *Log) Read(offset int64) (*Record, error) {
	l.mu.RLock()
	s := l.findSegment(offset)
	l.mu.RUnlock()
	if s == nil {
		return nil, fmt.Errorf("offset not found: %d", offset)
	}
	return s.read(offset)
}

func (l *Log) findSegment(offset int64) *segment {
	idx := sort.Search(len(l.segments), func(i int) bool {
		return l.segments[i].baseOffset > offset
	})
	if idx == 0 {
		return nil
	}
	return l.segments[idx-1]
}

// HighWaterMark is the next offset to be assigned.
func (l *Log) HighWaterMark() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active().nextOffset
}

// TopicName implements logmgr.Log.
func (l *Log) TopicName() string { return l.topic }

// Dir implements logmgr.Log.
func (l *Log) Dir() string { return l.dir }

// SizeBytes implements logmgr.Log: the aggregate on-disk size of every
// segment.
func (l *Log) SizeBytes() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	for _, s := range l.segments {
		total += s.sizeBytes()
	}
	return total
}

// Flush forces durability of every segment's buffered appends. A failure
// is wrapped as *logmgr.IOError, which the flush scheduler treats as fatal.
func (l *Log) Flush() error {
	l.mu.RLock()
	segments := append([]*segment(nil), l.segments...)
	l.mu.RUnlock()

	for _, s := range segments {
		if err := s.flush(); err != nil {
			return &logmgr.IOError{Op: "flush", Err: err}
		}
	}
	l.lastFlushedMs.Store(time.Now().UnixMilli())
	return nil
}

// LastFlushedTime implements logmgr.Log.
func (l *Log) LastFlushedTime() int64 { return l.lastFlushedMs.Load() }

// MarkDeletedWhile implements logmgr.Log: it scans non-active segments
// oldest-first, stopping at the first one filter rejects, and returns the
// accepted prefix. The active segment is never offered to filter.
func (l *Log) MarkDeletedWhile(filter func(logmgr.Segment) bool) []logmgr.Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []logmgr.Segment
	for i := 0; i < len(l.segments)-1; i++ { // exclude the active tail
		h := segmentHandle{l.segments[i]}
		if !filter(h) {
			break
		}
		out = append(out, h)
	}
	return out
}

// PruneDeleted implements logmgr.Log: it drops segs from l.segments under
// the write lock, matched by the underlying *segment identity segmentHandle
// wraps. Segments absent from segs (e.g. the active tail, never offered to
// MarkDeletedWhile) are left untouched.
func (l *Log) PruneDeleted(segs []logmgr.Segment) {
	if len(segs) == 0 {
		return
	}
	drop := make(map[*segment]bool, len(segs))
	for _, seg := range segs {
		if h, ok := seg.(segmentHandle); ok {
			drop[h.s] = true
		}
	}
	if len(drop) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.segments[:0]
	for _, s := range l.segments {
		if drop[s] {
			continue
		}
		kept = append(kept, s)
	}
	l.segments = kept
}

// GetOffsetsBefore implements logmgr.Log.
func (l *Log) GetOffsetsBefore(req logmgr.OffsetRequest) []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.segments) == 0 {
		return logmgr.GetEmptyOffsets()
	}

	if req.TimestampMs < 0 {
		return []int64{l.active().nextOffset}
	}

	for _, s := range l.segments {
		if s.lastTimestampMs() < req.TimestampMs {
			// every record in this segment predates the target; the
			// answer, if any, lies in a later segment.
			continue
		}
		off, err := s.findOffsetByTimestamp(req.TimestampMs)
		if err == nil {
			return capOffsets([]int64{off}, req.MaxNumOffsets)
		}
	}
	return []int64{l.active().nextOffset}
}

func capOffsets(offsets []int64, max int) []int64 {
	if max > 0 && len(offsets) > max {
		return offsets[:max]
	}
	return offsets
}

// Segments returns introspection info for every segment, oldest first.
func (l *Log) Segments() []SegmentInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]SegmentInfo, len(l.segments))
	for i, s := range l.segments {
		out[i] = SegmentInfo{BaseOffset: s.baseOffset, NextOffset: s.nextOffset, SizeBytes: s.sizeBytes()}
	}
	return out
}

// SegmentInfo describes one segment for introspection/testing.
type SegmentInfo struct {
	BaseOffset int64
	NextOffset int64
	SizeBytes  int64
}

// Close implements logmgr.Log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var firstErr error
	for _, s := range l.segments {
		if err := s.closeFiles(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
