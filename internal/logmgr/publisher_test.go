// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistryClient struct {
	mu        sync.Mutex
	started   bool
	broker    bool
	topics    []string
	closeErr  error
	closed    bool
	topicErrs map[string]error
}

func (c *recordingRegistryClient) Start() error { c.started = true; return nil }
func (c *recordingRegistryClient) RegisterBroker() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broker = true
	return nil
}
func (c *recordingRegistryClient) RegisterTopic(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.topicErrs[topic]; ok {
		return err
	}
	c.topics = append(c.topics, topic)
	return nil
}
func (c *recordingRegistryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *recordingRegistryClient) seenTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

func TestPublisherDeliversEnqueuedTopics(t *testing.T) {
	client := &recordingRegistryClient{}
	m := NewManager(Config{LogDir: t.TempDir(), NumPartitions: 1}, fakeFactory(nil), WithRegistryClient(client))

	m.publisher.start()
	m.publisher.enqueue("orders")
	m.publisher.enqueue("payments")

	require.Eventually(t, func() bool {
		return len(client.seenTopics()) == 2
	}, time.Second, time.Millisecond)

	m.publisher.stop()
	assert.ElementsMatch(t, []string{"orders", "payments"}, client.seenTopics())
}

func TestPublisherIgnoresEmptyStringEnqueue(t *testing.T) {
	client := &recordingRegistryClient{}
	m := NewManager(Config{LogDir: t.TempDir(), NumPartitions: 1}, fakeFactory(nil), WithRegistryClient(client))

	m.publisher.start()
	m.publisher.enqueue("")
	m.publisher.stop()

	assert.Empty(t, client.seenTopics())
}

func TestPublisherStopIsIdempotent(t *testing.T) {
	m := NewManager(Config{LogDir: t.TempDir(), NumPartitions: 1}, fakeFactory(nil))
	m.publisher.start()

	assert.NotPanics(t, func() {
		m.publisher.stop()
		m.publisher.stop()
	})
}

func TestChanBoolSetIsIdempotentAndObservable(t *testing.T) {
	c := newChanBool()
	assert.False(t, c.isSet())
	c.set()
	assert.True(t, c.isSet())
	assert.NotPanics(t, func() { c.set() })
}
