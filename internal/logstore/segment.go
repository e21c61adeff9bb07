// Copyright 2025 The Jafka Authors.

// Package logstore is the concrete default implementation of the log
// manager's Log and Segment contracts: per-(topic, partition) directories
// holding length-prefixed binary records across rolling segment files, each
// with a paired offset index and timestamp index.
package logstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jafka-project/jafka/pkg/compression"
	"github.com/jafka-project/jafka/pkg/mempool"
)

// Record is a single append-only entry: an offset-stamped key/value pair.
type Record struct {
	Offset    int64
	Timestamp int64
	Key       []byte
	Value     []byte
}

const indexEntrySize = 16 // 8 bytes key + 8 bytes value, big-endian

// segment is a single file within a Log, backed by a triple of files named
// "%020d.log", ".index", and ".timeindex" under the owning Log's directory.
// Once sealed (no longer the log's active tail) it becomes eligible for
// compression-at-rest and for retention deletion.
type segment struct {
	mu sync.RWMutex

	dir        string
	baseOffset int64
	nextOffset int64
	maxBytes   int64

	dataFile      *os.File
	indexFile     *os.File
	timeIndexFile *os.File

	sealed bool
	closed bool
	codec  compression.Type

	// lastTimestamp is the timestamp of the most recently appended (or, on
	// reopen, most recently recovered) record. Zero on an empty segment.
	lastTimestamp int64
	// decoded holds the decompressed record bytes once a compressed sealed
	// segment has been read back for the first time.
	decoded []byte
}

type segmentConfig struct {
	Dir        string
	BaseOffset int64
	MaxBytes   int64
}

func dataPath(dir string, baseOffset int64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.log", baseOffset))
}
func indexPath(dir string, baseOffset int64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.index", baseOffset))
}
func timeIndexPath(dir string, baseOffset int64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.timeindex", baseOffset))
}

func newSegment(cfg segmentConfig) (*segment, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}

	dataFile, err := os.OpenFile(dataPath(cfg.Dir, cfg.BaseOffset), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	indexFile, err := os.OpenFile(indexPath(cfg.Dir, cfg.BaseOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("open index file: %w", err)
	}
	timeIndexFile, err := os.OpenFile(timeIndexPath(cfg.Dir, cfg.BaseOffset), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		dataFile.Close()
		indexFile.Close()
		return nil, fmt.Errorf("open time index file: %w", err)
	}

	s := &segment{
		dir:           cfg.Dir,
		baseOffset:    cfg.BaseOffset,
		nextOffset:    cfg.BaseOffset,
		maxBytes:      cfg.MaxBytes,
		dataFile:      dataFile,
		indexFile:     indexFile,
		timeIndexFile: timeIndexFile,
	}

	stat, err := dataFile.Stat()
	if err != nil {
		s.closeFiles()
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	if stat.Size() > 0 {
		if err := s.scan(); err != nil {
			s.closeFiles()
			return nil, fmt.Errorf("scan segment: %w", err)
		}
	}

	return s, nil
}

func (s *segment) scan() error {
	if _, err := s.dataFile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	count := int64(0)
	var last int64
	for {
		rec, err := decodeRecord(s.dataFile)
		// A torn trailing record ends the scan at the last whole record;
		// repairTail truncates it away when the Log is opened with Recover.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
		last = rec.Timestamp
		count++
	}
	s.nextOffset = s.baseOffset + count
	if count > 0 {
		s.lastTimestamp = last
	}
	return nil
}

// append writes record to the active segment, assigning it the next
// offset, and returns the assigned offset.
func (s *segment) append(record *Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, err := s.dataFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat data file: %w", err)
	}
	if stat.Size() >= s.maxBytes {
		return 0, errSegmentFull
	}

	position, err := s.dataFile.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek to end: %w", err)
	}

	offset := s.nextOffset
	record.Offset = offset

	data, err := encodeRecord(record)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.dataFile.Write(data); err != nil {
		mempool.PutBuffer(data)
		return 0, fmt.Errorf("write data: %w", err)
	}
	mempool.PutBuffer(data)

	if err := s.writeIndexEntry(s.indexFile, offset, position); err != nil {
		return 0, fmt.Errorf("write index: %w", err)
	}
	if err := s.writeIndexEntry(s.timeIndexFile, record.Timestamp, offset); err != nil {
		return 0, fmt.Errorf("write time index: %w", err)
	}

	s.nextOffset++
	s.lastTimestamp = record.Timestamp
	return offset, nil
}

func (s *segment) writeIndexEntry(f *os.File, a, b int64) error {
	buf := mempool.GetBuffer(indexEntrySize)
	defer mempool.PutBuffer(buf)
	binary.BigEndian.PutUint64(buf[0:8], uint64(a))
	binary.BigEndian.PutUint64(buf[8:16], uint64(b))
	_, err := f.Write(buf)
	return err
}

// read returns the record at offset, which must lie within
// [baseOffset, nextOffset).
func (s *segment) read(offset int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < s.baseOffset || offset >= s.nextOffset {
		return nil, fmt.Errorf("offset %d out of range [%d, %d)", offset, s.baseOffset, s.nextOffset)
	}

	position, err := s.findPosition(offset)
	if err != nil {
		return nil, fmt.Errorf("find position: %w", err)
	}

	if s.sealed && s.codec != compression.None {
		buf, err := s.decodedBytes()
		if err != nil {
			return nil, err
		}
		return decodeRecord(bytes.NewReader(buf[position:]))
	}

	if _, err := s.dataFile.Seek(position, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	return decodeRecord(s.dataFile)
}

// decodedBytes lazily decompresses a sealed, compressed segment's data file
// into memory and caches the result.
func (s *segment) decodedBytes() ([]byte, error) {
	if s.decoded != nil {
		return s.decoded, nil
	}
	raw, err := os.ReadFile(s.dataFile.Name())
	if err != nil {
		return nil, fmt.Errorf("read compressed segment: %w", err)
	}
	decoded, err := compression.Decompress(s.codec, raw)
	if err != nil {
		return nil, fmt.Errorf("decompress segment: %w", err)
	}
	s.decoded = decoded
	return decoded, nil
}

func (s *segment) findPosition(offset int64) (int64, error) {
	return binarySearchIndex(s.indexFile, offset)
}

// binarySearchIndex returns the position associated with the largest index
// key <= target, per the (key, value) pairs written by writeIndexEntry.
func binarySearchIndex(f *os.File, target int64) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}

	numEntries := size / indexEntrySize
	left, right := int64(0), numEntries-1
	var result int64

	for left <= right {
		mid := (left + right) / 2
		pos := mid * indexEntrySize
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return 0, err
		}
		buf := mempool.GetBuffer(indexEntrySize)
		if _, err := io.ReadFull(f, buf); err != nil {
			mempool.PutBuffer(buf)
			return 0, err
		}
		key := int64(binary.BigEndian.Uint64(buf[0:8]))
		value := int64(binary.BigEndian.Uint64(buf[8:16]))
		mempool.PutBuffer(buf)

		if key == target {
			return value, nil
		} else if key < target {
			result = value
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return result, nil
}

// findOffsetByTimestamp returns the smallest offset whose timestamp is >=
// target, using the time index's binary search.
func (s *segment) findOffsetByTimestamp(target int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size, err := s.timeIndexFile.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return s.baseOffset, nil
	}

	numEntries := size / indexEntrySize
	left, right := int64(0), numEntries-1
	result := s.nextOffset

	for left <= right {
		mid := (left + right) / 2
		pos := mid * indexEntrySize
		if _, err := s.timeIndexFile.Seek(pos, io.SeekStart); err != nil {
			return 0, err
		}
		buf := mempool.GetBuffer(indexEntrySize)
		if _, err := io.ReadFull(s.timeIndexFile, buf); err != nil {
			mempool.PutBuffer(buf)
			return 0, err
		}
		ts := int64(binary.BigEndian.Uint64(buf[0:8]))
		off := int64(binary.BigEndian.Uint64(buf[8:16]))
		mempool.PutBuffer(buf)

		if ts >= target {
			result = off
			right = mid - 1
		} else {
			left = mid + 1
		}
	}
	return result, nil
}

func (s *segment) isFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stat, err := s.dataFile.Stat()
	if err != nil {
		return false
	}
	return stat.Size() >= s.maxBytes
}

// flush is a no-op on a segment whose files are no longer open: a segment
// can be closed by a concurrent delete (retention) between the moment the
// flush scheduler snapshots the segment list and the moment it reaches this
// segment, and that race must never surface as a flush error.
func (s *segment) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.dataFile.Sync(); err != nil {
		return err
	}
	if err := s.indexFile.Sync(); err != nil {
		return err
	}
	return s.timeIndexFile.Sync()
}

// seal marks the segment as no longer the active tail. If codec is not
// None, it compresses the segment's data file in place: record offsets
// recorded in the index files remain valid against the decompressed byte
// stream, so reads after sealing transparently decompress once and cache
// the result.
func (s *segment) seal(codec compression.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed = true
	if codec == compression.None {
		return nil
	}

	raw, err := os.ReadFile(s.dataFile.Name())
	if err != nil {
		return fmt.Errorf("read segment for compression: %w", err)
	}
	compressed, err := compression.Compress(codec, raw)
	if err != nil {
		return fmt.Errorf("compress segment: %w", err)
	}
	if err := s.dataFile.Truncate(0); err != nil {
		return fmt.Errorf("truncate for compression: %w", err)
	}
	// The data file is opened O_APPEND (where WriteAt is refused), so after
	// the truncate a plain Write lands at offset 0.
	if _, err := s.dataFile.Write(compressed); err != nil {
		return fmt.Errorf("write compressed segment: %w", err)
	}
	s.codec = codec
	return nil
}

// sizeBytes returns the segment's size on disk (its compressed size, once
// sealed with a codec).
func (s *segment) sizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stat, err := s.dataFile.Stat()
	if err != nil {
		return 0
	}
	return stat.Size()
}

// lastModified is the data file's modification time in epoch milliseconds.
func (s *segment) lastModified() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stat, err := s.dataFile.Stat()
	if err != nil {
		return 0
	}
	return stat.ModTime().UnixMilli()
}

func (s *segment) path() string {
	return s.dataFile.Name()
}

func (s *segment) closeFiles() error {
	s.closed = true
	var firstErr error
	for _, f := range []*os.File{s.dataFile, s.indexFile, s.timeIndexFile} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// lastTimestampMs returns the timestamp of the most recently appended
// record, or 0 if the segment is empty.
func (s *segment) lastTimestampMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTimestamp
}

// delete closes the segment and unlinks its backing files, reporting true
// iff the data file was actually removed.
func (s *segment) delete() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.closeFiles()

	removed := false
	if err := os.Remove(s.dataFile.Name()); err == nil {
		removed = true
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("remove data file: %w", err)
	}
	if err := os.Remove(s.indexFile.Name()); err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("remove index file: %w", err)
	}
	if err := os.Remove(s.timeIndexFile.Name()); err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("remove time index file: %w", err)
	}
	return removed, nil
}

var errSegmentFull = fmt.Errorf("segment is full")

func encodeRecord(record *Record) ([]byte, error) {
	keyLen := len(record.Key)
	valueLen := len(record.Value)
	size := 8 + 8 + 4 + keyLen + 4 + valueLen

	buf := mempool.GetBuffer(4 + size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	binary.BigEndian.PutUint64(buf[4:12], uint64(record.Offset))
	binary.BigEndian.PutUint64(buf[12:20], uint64(record.Timestamp))
	binary.BigEndian.PutUint32(buf[20:24], uint32(keyLen))
	copy(buf[24:24+keyLen], record.Key)
	binary.BigEndian.PutUint32(buf[24+keyLen:28+keyLen], uint32(valueLen))
	copy(buf[28+keyLen:], record.Value)

	return buf, nil
}

func decodeRecord(r io.Reader) (*Record, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}

	data := mempool.GetBuffer(int(size))
	defer mempool.PutBuffer(data)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	record := &Record{}
	record.Offset = int64(binary.BigEndian.Uint64(data[0:8]))
	record.Timestamp = int64(binary.BigEndian.Uint64(data[8:16]))

	keyLen := binary.BigEndian.Uint32(data[16:20])
	record.Key = append([]byte(nil), data[20:20+keyLen]...)

	valueLen := binary.BigEndian.Uint32(data[20+keyLen : 24+keyLen])
	record.Value = append([]byte(nil), data[24+keyLen:24+keyLen+valueLen]...)

	return record, nil
}
