// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanupExpiredSegmentsStopsAtFirstSurvivor(t *testing.T) {
	m := newTestManager(t, Config{
		LogDir:                 t.TempDir(),
		NumPartitions:          1,
		LogCleanupDefaultAgeMs: 1000,
	})

	now := time.Now().UnixMilli()
	seg0 := &fakeSegment{path: "00.log", lastModified: now - 5000} // expired
	seg1 := &fakeSegment{path: "01.log", lastModified: now - 4000} // expired
	seg2 := &fakeSegment{path: "02.log", lastModified: now - 500}  // still fresh: stops scan here
	seg3 := &fakeSegment{path: "03.log", lastModified: now - 9000} // expired but unreachable, never scanned
	l := newFakeLog("orders", "orders-0")
	l.segments = []*fakeSegment{seg0, seg1, seg2, seg3}

	deleted := m.retention.cleanupExpiredSegments(l)

	assert.Equal(t, 2, deleted)
	assert.True(t, seg0.deleted)
	assert.True(t, seg1.deleted)
	assert.False(t, seg2.deleted)
	assert.False(t, seg3.deleted, "scan must stop at the first surviving segment")
	assert.Equal(t, []*fakeSegment{seg2, seg3}, l.segments, "deleted segments must be pruned from the Log's own bookkeeping")
}

func TestCleanupSegmentsToMaintainSizeUnboundedIsNoop(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 1, LogRetentionSize: -1})
	l := newFakeLog("orders", "orders-0")
	l.segments = []*fakeSegment{{path: "00.log", size: 1_000_000}}

	assert.Equal(t, 0, m.retention.cleanupSegmentsToMaintainSize(l))
	assert.False(t, l.segments[0].deleted)
}

func TestCleanupSegmentsToMaintainSizeAcceptsOldestFirstUntilDiffNegative(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 1, LogRetentionSize: 100})
	// total size 150, quota 100 -> diff starts at 50.
	// seg0 (40): diff = 50-40 = 10 >= 0 -> accepted
	// seg1 (30): diff = 10-30 = -20 < 0 -> rejected, scan stops here
	seg0 := &fakeSegment{path: "00.log", size: 40}
	seg1 := &fakeSegment{path: "01.log", size: 30}
	seg2 := &fakeSegment{path: "02.log", size: 80}
	l := newFakeLog("orders", "orders-0")
	l.segments = []*fakeSegment{seg0, seg1, seg2}

	deleted := m.retention.cleanupSegmentsToMaintainSize(l)

	assert.Equal(t, 1, deleted)
	assert.True(t, seg0.deleted)
	assert.False(t, seg1.deleted)
	assert.False(t, seg2.deleted)
	assert.Equal(t, []*fakeSegment{seg1, seg2}, l.segments, "deleted segment must be pruned from the Log's own bookkeeping")
}

func TestCleanupSegmentsToMaintainSizeNoopWhenUnderQuota(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 1, LogRetentionSize: 1000})
	l := newFakeLog("orders", "orders-0")
	l.segments = []*fakeSegment{{path: "00.log", size: 10}}

	assert.Equal(t, 0, m.retention.cleanupSegmentsToMaintainSize(l))
}

func TestDeleteSegmentsCountsOnlySuccessfulUnlinks(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 1})
	l := newFakeLog("orders", "orders-0")
	ok := &fakeSegment{path: "ok.log"}
	failing := &fakeSegment{path: "bad.log", deleteErr: assert.AnError}

	deleted := m.retention.deleteSegments(l, []Segment{ok, failing})

	assert.Equal(t, 1, deleted)
	assert.True(t, ok.deleted)
	assert.False(t, failing.deleted)
}
