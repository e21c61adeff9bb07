// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// retentionFirstFireDelay is the fixed delay before the first retention
// sweep, independent of the configured sweep period.
const retentionFirstFireDelay = time.Minute

// retentionEngine walks every Log on each scheduler fire and applies, in
// order, age-based then size-based cleanup (§4.4), summing the counts of
// segments actually unlinked.
type retentionEngine struct {
	m *Manager

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newRetentionEngine(m *Manager) *retentionEngine {
	return &retentionEngine{m: m, stopCh: make(chan struct{})}
}

func (r *retentionEngine) start() {
	period := r.m.cfg.LogCleanupIntervalMs
	if period <= 0 {
		period = 5 * time.Minute
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		timer := time.NewTimer(retentionFirstFireDelay)
		defer timer.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-timer.C:
				r.sweep()
				timer.Reset(period)
			}
		}
	}()
}

func (r *retentionEngine) stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// sweep runs one full pass over every Log, returning the total number of
// segments actually unlinked.
func (r *retentionEngine) sweep() int {
	total := 0
	for _, l := range r.m.reg.allLogs() {
		total += r.cleanupExpiredSegments(l)
		total += r.cleanupSegmentsToMaintainSize(l)
	}
	r.m.metrics.AddSegmentsDeleted(total)
	return total
}

// cleanupExpiredSegments implements the age-based cleanup algorithm: marks
// every non-active segment older than the effective threshold, stopping at
// the first segment (oldest-to-newest) that is still within it, then
// deletes the marked prefix.
func (r *retentionEngine) cleanupExpiredSegments(l Log) int {
	threshold, ok := r.m.cfg.LogRetentionHoursMap[l.TopicName()]
	if !ok {
		threshold = r.m.cfg.LogCleanupDefaultAgeMs
	}
	start := time.Now().UnixMilli()

	marked := l.MarkDeletedWhile(func(s Segment) bool {
		return start-s.LastModified() > threshold
	})
	deleted := r.deleteSegments(l, marked)
	l.PruneDeleted(marked)
	return deleted
}

// cleanupSegmentsToMaintainSize implements the size-based cleanup
// algorithm: a no-op when retention size is unbounded or the log already
// fits, otherwise a running-diff scan oldest-first that accepts a segment
// for deletion iff the diff remains >= 0 after subtracting its size.
func (r *retentionEngine) cleanupSegmentsToMaintainSize(l Log) int {
	quota := r.m.cfg.LogRetentionSize
	if quota < 0 {
		return 0
	}
	size := l.SizeBytes()
	if size < quota {
		return 0
	}

	diff := size - quota
	marked := l.MarkDeletedWhile(func(s Segment) bool {
		diff -= s.SizeBytes()
		return diff >= 0
	})
	deleted := r.deleteSegments(l, marked)
	l.PruneDeleted(marked)
	return deleted
}

// deleteSegments attempts each marked segment's deletion independently; a
// failed deletion never prevents the next attempt. The counter returned
// reflects only unlinks that actually succeeded. Every marked segment,
// whether or not its files were actually unlinked, must still be dropped
// from the Log via PruneDeleted: Delete closes a segment's files
// unconditionally, even on a failed unlink.
func (r *retentionEngine) deleteSegments(l Log, marked []Segment) int {
	deleted := 0
	for _, s := range marked {
		ok, err := s.Delete()
		if err != nil {
			r.m.logger.Warn("segment delete failed",
				zap.String("log", l.TopicName()), zap.String("path", s.Path()), zap.Bool("success", false), zap.Error(err))
			continue
		}
		r.m.logger.Warn("segment deleted",
			zap.String("log", l.TopicName()), zap.String("path", s.Path()), zap.Bool("success", ok))
		if ok {
			deleted++
		}
	}
	return deleted
}
