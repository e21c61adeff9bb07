// Copyright 2025 The Jafka Authors.

package logstore

import (
	"github.com/jafka-project/jafka/internal/logmgr"
	"github.com/jafka-project/jafka/pkg/compression"
)

// NewFactory builds a logmgr.LogFactory that constructs Logs backed by this
// package, using maxSegmentBytes as the default rolling threshold and
// codec for segments sealed during a roll. provider, when non-nil, lets
// each Log consult the manager's currently-installed RollingStrategy
// instead of only the fixed-size default. flushEveryNMessages, when > 0, is
// passed through to every constructed Log as its message-count flush
// trigger.
func NewFactory(codec compression.Type, maxSegmentBytes int64, provider StrategyProvider, flushEveryNMessages int) logmgr.LogFactory {
	return func(dir string, topic string, partition int, recover bool) (logmgr.Log, error) {
		return NewLog(Config{
			Dir:                 dir,
			Topic:               topic,
			Partition:           partition,
			MaxSegmentBytes:     maxSegmentBytes,
			Codec:               codec,
			Strategy:            provider,
			Recover:             recover,
			FlushEveryNMessages: flushEveryNMessages,
		})
	}
}
