// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// flushScheduler is the dedicated single-worker periodic scheduler from
// §4.3. On each tick it iterates every Log in the registry and flushes
// those whose dirty interval has elapsed. An IOError from flush() is
// unrecoverable: the process terminates immediately via a hard halt,
// bypassing graceful shutdown.
type flushScheduler struct {
	m *Manager

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// exit is called on a fatal flush IOError. Overridable in tests so a
	// unit test can observe the halt instead of killing the test binary.
	exit func(code int)
}

func newFlushScheduler(m *Manager) *flushScheduler {
	return &flushScheduler{
		m:      m,
		stopCh: make(chan struct{}),
		exit:   os.Exit,
	}
}

func (f *flushScheduler) start() {
	rate := f.m.cfg.FlushSchedulerThreadRate
	if rate <= 0 {
		rate = 3 * time.Second
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(rate)
		defer ticker.Stop()
		for {
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
				f.tick()
			}
		}
	}()
}

func (f *flushScheduler) tick() {
	now := time.Now().UnixMilli()
	for _, l := range f.m.reg.allLogs() {
		effectiveInterval := f.m.cfg.DefaultFlushIntervalMs
		if override, ok := f.m.cfg.FlushIntervalMap[l.TopicName()]; ok {
			effectiveInterval = override
		}

		sinceLastFlush := now - l.LastFlushedTime()
		if sinceLastFlush < effectiveInterval {
			continue
		}

		if err := l.Flush(); err != nil {
			f.m.logger.Error("flush failed, halting process",
				zap.String("topic", l.TopicName()), zap.String("dir", l.Dir()), zap.Error(err))
			f.m.metrics.IncFlushFailures()
			f.exit(1)
			return
		}
	}
}

// stop shuts the scheduler down, waiting for any in-flight tick to finish.
func (f *flushScheduler) stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.wg.Wait()
}
