// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"sync"

	"go.uber.org/zap"
)

// unboundedQueue is a thread-safe FIFO of strings with no capacity limit:
// enqueue never blocks the caller, and dequeue blocks until an item is
// available. Built on a mutex/condition-variable pair rather than a
// channel because a buffered channel would impose a capacity bound the
// registry publisher is explicitly required not to have.
type unboundedQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []string
}

func newUnboundedQueue() *unboundedQueue {
	q := &unboundedQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *unboundedQueue) enqueue(item string) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *unboundedQueue) dequeue() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// publisher is the single background worker from §4.6 draining an
// unbounded FIFO queue of topic names and announcing each to the external
// registry. An empty string is reserved as a wakeup/shutdown token and is
// never published.
type publisher struct {
	m *Manager

	queue   *unboundedQueue
	stopped chanBool
	wg      sync.WaitGroup
}

// chanBool is a monotonic, set-once stop flag.
type chanBool struct {
	ch   chan struct{}
	once sync.Once
}

func newChanBool() chanBool { return chanBool{ch: make(chan struct{})} }

func (c *chanBool) set() { c.once.Do(func() { close(c.ch) }) }

func (c *chanBool) isSet() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

func newPublisher(m *Manager) *publisher {
	return &publisher{
		m:       m,
		queue:   newUnboundedQueue(),
		stopped: newChanBool(),
	}
}

func (p *publisher) start() {
	p.wg.Add(1)
	go p.run()
}

func (p *publisher) run() {
	defer p.wg.Done()
	for {
		topic := p.queue.dequeue()
		if topic == "" {
			if p.stopped.isSet() {
				return
			}
			continue
		}
		if err := p.m.registryClient.RegisterTopic(topic); err != nil {
			p.m.logger.Error("registry topic announcement failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// enqueue announces topic asynchronously. Empty strings are silently
// ignored rather than enqueued, since they are the shutdown wakeup token.
func (p *publisher) enqueue(topic string) {
	if topic == "" {
		return
	}
	p.queue.enqueue(topic)
}

// stop sets the stop flag, wakes the worker with the empty-string
// sentinel, and waits for it to exit.
func (p *publisher) stop() {
	p.stopped.set()
	p.queue.enqueue("")
	p.wg.Wait()
}
