// Copyright 2025 The Jafka Authors.

// Package logmgr owns the on-disk collection of per-(topic, partition)
// append logs: discovering and recovering them on startup, routing
// produce/fetch traffic to the right one, creating new ones on demand,
// flushing them on a schedule, and reaping segments by age and size.
package logmgr

import (
	"errors"
	"fmt"
)

// ConfigError reports a misconfigured log directory. It is fatal to startup.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Path, e.Reason)
}

// InvalidPartition reports a partition index outside [0, P(topic)) or an
// empty topic name. Callers should not log this as an error; it may be
// driven entirely by client input.
type InvalidPartition struct {
	Topic     string
	Partition int
	Bound     int
}

func (e *InvalidPartition) Error() string {
	if e.Topic == "" {
		return "invalid partition: empty topic"
	}
	return fmt.Sprintf("invalid partition %d for topic %q (valid range [0, %d))", e.Partition, e.Topic, e.Bound)
}

// IOError wraps an I/O failure surfaced by a Log. Flush-path IOErrors are
// treated as fatal by the flush scheduler; all others are logged and
// swallowed per iteration.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrLogClosed is returned by operations attempted on a Log after Close.
var ErrLogClosed = errors.New("log is closed")

// Segment is a single immutable-by-age file within a Log. The manager never
// creates or appends segments directly; it only marks them for deletion via
// MarkDeletedWhile and invokes Delete on the returned handles.
type Segment interface {
	// LastModified is the modification time of the segment's backing file,
	// in epoch milliseconds.
	LastModified() int64
	// SizeBytes is the segment's size on disk.
	SizeBytes() int64
	// Path is the segment's absolute data-file path, used only for logging.
	Path() string
	// Delete closes the segment (if still open) and unlinks its backing
	// files. Returns true iff the unlink actually happened.
	Delete() (bool, error)
}

// Log is a handle to an append-only sequence of segment files living in a
// dedicated subdirectory named "<topic>-<partition>". The manager treats a
// Log as an opaque value supporting this contract; segment-level append,
// iteration, and offset indexing live entirely behind it.
type Log interface {
	TopicName() string
	Dir() string

	// SizeBytes is the aggregate size, in bytes, of every segment.
	SizeBytes() int64

	// Flush forces durability of buffered appends to disk. A non-nil error
	// is always an *IOError and is treated as unrecoverable by the flush
	// scheduler.
	Flush() error
	// LastFlushedTime is the epoch-millisecond time of the last successful
	// Flush.
	LastFlushedTime() int64

	// MarkDeletedWhile scans segments oldest-first, excluding the active
	// segment, passing each to filter. It stops at the first segment filter
	// rejects and returns the accepted prefix, already marked for deletion
	// but not yet unlinked.
	MarkDeletedWhile(filter func(Segment) bool) []Segment

	// PruneDeleted drops segs from the Log's own bookkeeping. The caller
	// must have already called Delete on each of segs (successfully or
	// not); PruneDeleted removes them regardless, since Delete closes a
	// segment's files unconditionally and a closed segment can never again
	// be safely flushed, read, or reported by Segments.
	PruneDeleted(segs []Segment)

	// GetOffsetsBefore answers an offset lookup request.
	GetOffsetsBefore(req OffsetRequest) []int64

	// Close releases the Log's open file handles.
	Close() error
}

// OffsetRequest describes an offset lookup query against a Log.
type OffsetRequest struct {
	// MaxNumOffsets caps how many offsets are returned.
	MaxNumOffsets int
	// TimestampMs selects records at or after this time; negative means
	// "latest".
	TimestampMs int64
}

// GetEmptyOffsets is the static default response returned when the log for
// a requested (topic, partition) does not exist.
func GetEmptyOffsets() []int64 { return nil }

// RollingStrategy is a pure predicate/decision module that, given the active
// segment, decides whether it must be closed and a new one begun. The
// manager accepts an injected strategy via SetRollingStrategy; if none is
// set before Load, FixedSizeRollingStrategy is installed.
type RollingStrategy interface {
	ShouldRoll(active Segment) bool
}

// RegistryClient is the external registry collaborator used to advertise
// this broker and its topics. It is a collaborator, not an inheritance
// parent: the manager must function fully against registryclient.Noop.
type RegistryClient interface {
	Start() error
	RegisterBroker() error
	RegisterTopic(topic string) error
	Close() error
}
