// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFactory(constructed *atomic.Int64) LogFactory {
	return func(dir, topic string, partition int, recover bool) (Log, error) {
		constructed.Add(1)
		return newFakeLog(topic, dir), nil
	}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	var constructed atomic.Int64
	return NewManager(cfg, fakeFactory(&constructed))
}

func TestDirNameRoundTrip(t *testing.T) {
	name := dirName("orders", 3)
	assert.Equal(t, "orders-3", name)

	topic, partition, ok := parseDirName(name)
	require.True(t, ok)
	assert.Equal(t, "orders", topic)
	assert.Equal(t, 3, partition)
}

func TestParseDirNameSplitsOnRightmostDash(t *testing.T) {
	topic, partition, ok := parseDirName("click-events-12")
	require.True(t, ok)
	assert.Equal(t, "click-events", topic)
	assert.Equal(t, 12, partition)
}

func TestParseDirNameRejectsMalformed(t *testing.T) {
	cases := []string{"noDash", "orders-", "-5", "orders-abc", ""}
	for _, name := range cases {
		_, _, ok := parseDirName(name)
		assert.False(t, ok, "expected %q to be rejected", name)
	}
}

func TestCheckPartitionBounds(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 2})

	assert.NoError(t, m.checkPartitionBounds("orders", 0))
	assert.NoError(t, m.checkPartitionBounds("orders", 1))

	var invalid *InvalidPartition
	err := m.checkPartitionBounds("orders", 2)
	require.ErrorAs(t, err, &invalid)

	err = m.checkPartitionBounds("", 0)
	require.ErrorAs(t, err, &invalid)
}

func TestCheckPartitionBoundsPerTopicOverride(t *testing.T) {
	m := newTestManager(t, Config{
		LogDir:             t.TempDir(),
		NumPartitions:      1,
		TopicPartitionsMap: map[string]int{"wide-topic": 8},
	})

	assert.NoError(t, m.checkPartitionBounds("wide-topic", 7))
	assert.Error(t, m.checkPartitionBounds("wide-topic", 8))
	assert.Error(t, m.checkPartitionBounds("default-topic", 1))
}

func TestGetOrCreateLogReturnsSameInstanceForSameKey(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 1})

	first, err := m.GetOrCreateLog("orders", 0)
	require.NoError(t, err)

	second, err := m.GetOrCreateLog("orders", 0)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

// TestGetOrCreateLogConcurrentRace drives many goroutines through
// GetOrCreateLog for the identical (topic, partition) key and asserts they
// all observe one winning Log, that exactly one Log is constructed, and that
// the winner is left open.
func TestGetOrCreateLogConcurrentRace(t *testing.T) {
	var constructed atomic.Int64
	m := NewManager(Config{LogDir: t.TempDir(), NumPartitions: 1}, fakeFactory(&constructed))

	const goroutines = 32
	results := make([]Log, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			l, err := m.GetOrCreateLog("orders", 0)
			require.NoError(t, err)
			results[i] = l
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int64(1), constructed.Load(), "only one Log may be constructed for the key")

	winner := results[0].(*fakeLog)
	assert.False(t, winner.closed, "the winning log must not be closed")

	for i := 0; i < goroutines; i++ {
		l := results[i].(*fakeLog)
		if l != winner {
			assert.True(t, l.closed, "a losing draft must be closed")
		}
	}
}

func TestGetLogBeforeCreateReturnsNil(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 1})
	l, err := m.GetLog("orders", 0)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestGetLogAwaitsStartupBarrierWhenZookeeperEnabled(t *testing.T) {
	m := NewManager(Config{LogDir: t.TempDir(), NumPartitions: 1, EnableZookeeper: true}, func(dir, topic string, partition int, recover bool) (Log, error) {
		return newFakeLog(topic, dir), nil
	})

	done := make(chan struct{})
	go func() {
		_, _ = m.GetLog("orders", 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("GetLog returned before Startup released the barrier")
	default:
	}

	require.NoError(t, m.Startup())
	<-done
}

func TestChoosePartitionStaysInBounds(t *testing.T) {
	m := newTestManager(t, Config{LogDir: t.TempDir(), NumPartitions: 4})
	for i := 0; i < 200; i++ {
		p := m.ChoosePartition("orders")
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 4)
	}
}
