// Copyright 2025 The Jafka Authors.

// Package registryclient provides the external registry collaborator
// consumed by the log manager: a no-op default and a minimal HTTP-backed
// implementation for when registry integration is enabled.
package registryclient

// Noop satisfies the registry client contract without doing anything. It is
// the default collaborator, used whenever registry integration is
// disabled; the manager must — and does — function fully against it.
type Noop struct{}

func (Noop) Start() error              { return nil }
func (Noop) RegisterBroker() error     { return nil }
func (Noop) RegisterTopic(string) error { return nil }
func (Noop) Close() error              { return nil }
