// Copyright 2025 The Jafka Authors.

package logstore

import (
	"testing"

	"github.com/jafka-project/jafka/pkg/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSegment(t *testing.T, baseOffset, maxBytes int64) *segment {
	t.Helper()
	s, err := newSegment(segmentConfig{Dir: t.TempDir(), BaseOffset: baseOffset, MaxBytes: maxBytes})
	require.NoError(t, err)
	return s
}

func TestSegmentAppendAndRead(t *testing.T) {
	s := newTestSegment(t, 0, 1<<20)

	off0, err := s.append(&Record{Timestamp: 100, Key: []byte("k0"), Value: []byte("v0")})
	require.NoError(t, err)
	off1, err := s.append(&Record{Timestamp: 200, Key: []byte("k1"), Value: []byte("v1")})
	require.NoError(t, err)

	assert.Equal(t, int64(0), off0)
	assert.Equal(t, int64(1), off1)

	r0, err := s.read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("k0"), r0.Key)
	assert.Equal(t, []byte("v0"), r0.Value)

	r1, err := s.read(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), r1.Value)
}

func TestSegmentReadOutOfRange(t *testing.T) {
	s := newTestSegment(t, 0, 1<<20)
	_, err := s.append(&Record{Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)

	_, err = s.read(5)
	assert.Error(t, err)
}

func TestSegmentIsFullAtMaxBytes(t *testing.T) {
	s := newTestSegment(t, 0, 10)
	assert.False(t, s.isFull())

	_, err := s.append(&Record{Key: []byte("0123456789012345"), Value: nil})
	require.NoError(t, err)
	assert.True(t, s.isFull())

	_, err = s.append(&Record{Key: nil, Value: nil})
	assert.ErrorIs(t, err, errSegmentFull)
}

func TestSegmentSealWithCompressionPreservesReads(t *testing.T) {
	s := newTestSegment(t, 0, 1<<20)
	for i := 0; i < 5; i++ {
		_, err := s.append(&Record{Timestamp: int64(i), Key: []byte("key"), Value: []byte("some value data")})
		require.NoError(t, err)
	}

	require.NoError(t, s.seal(compression.GZIP))
	assert.True(t, s.sealed)
	assert.Equal(t, compression.GZIP, s.codec)

	for i := int64(0); i < 5; i++ {
		r, err := s.read(i)
		require.NoError(t, err)
		assert.Equal(t, []byte("some value data"), r.Value)
		assert.Equal(t, i, r.Timestamp)
	}
}

func TestSegmentScanRecoversNextOffsetOnReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := newSegment(segmentConfig{Dir: dir, BaseOffset: 0, MaxBytes: 1 << 20})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.append(&Record{Key: []byte("k"), Value: []byte("v")})
		require.NoError(t, err)
	}
	require.NoError(t, s.closeFiles())

	reopened, err := newSegment(segmentConfig{Dir: dir, BaseOffset: 0, MaxBytes: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), reopened.nextOffset)
}

func TestSegmentFindOffsetByTimestamp(t *testing.T) {
	s := newTestSegment(t, 0, 1<<20)
	timestamps := []int64{100, 200, 300, 400}
	for _, ts := range timestamps {
		_, err := s.append(&Record{Timestamp: ts, Key: nil, Value: nil})
		require.NoError(t, err)
	}

	off, err := s.findOffsetByTimestamp(250)
	require.NoError(t, err)
	assert.Equal(t, int64(2), off) // first record with ts >= 250

	off, err = s.findOffsetByTimestamp(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
}

func TestSegmentFlushIsNoopOnClosedSegment(t *testing.T) {
	s := newTestSegment(t, 0, 1<<20)
	require.NoError(t, s.closeFiles())

	assert.NoError(t, s.flush(), "flush on a closed segment must be a safe no-op, not a Sync error")
}

func TestSegmentDeleteReportsActualUnlink(t *testing.T) {
	s := newTestSegment(t, 0, 1<<20)
	removed, err := s.delete()
	require.NoError(t, err)
	assert.True(t, removed)

	// second delete: files already gone, not re-reported as removed.
	removed, err = s.delete()
	require.NoError(t, err)
	assert.False(t, removed)
}
