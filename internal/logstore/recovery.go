// Copyright 2025 The Jafka Authors.

package logstore

import (
	"io"
)

// repairTail detects a truncated trailing record — a length prefix whose
// declared size runs past EOF — or an index whose entry count disagrees
// with how many records the data file actually holds, and repairs either
// by truncating the segment to its last verified record boundary.
func repairTail(s *segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.dataFile.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var validEnd int64
	count := int64(0)
	var last int64
	for {
		pos, err := s.dataFile.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		rec, err := decodeRecord(s.dataFile)
		if err == io.EOF {
			validEnd = pos
			break
		}
		if err != nil {
			// A partial/corrupt record: truncate to the last fully-decoded
			// boundary and stop scanning.
			validEnd = pos
			break
		}
		last = rec.Timestamp
		count++
	}

	stat, err := s.dataFile.Stat()
	if err != nil {
		return err
	}
	if validEnd < stat.Size() {
		if err := s.dataFile.Truncate(validEnd); err != nil {
			return err
		}
	}

	indexStat, err := s.indexFile.Stat()
	if err != nil {
		return err
	}
	expectedIndexSize := count * indexEntrySize
	if indexStat.Size() != expectedIndexSize {
		if err := s.indexFile.Truncate(expectedIndexSize); err != nil {
			return err
		}
	}
	timeIndexStat, err := s.timeIndexFile.Stat()
	if err != nil {
		return err
	}
	if timeIndexStat.Size() != expectedIndexSize {
		if err := s.timeIndexFile.Truncate(expectedIndexSize); err != nil {
			return err
		}
	}

	s.nextOffset = s.baseOffset + count
	if count > 0 {
		s.lastTimestamp = last
	}
	return nil
}
