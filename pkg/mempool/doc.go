// Copyright 2025 The Jafka Authors.

package mempool

// Package mempool provides memory pooling for byte buffers to reduce GC pressure.
//
// It includes:
// - BufferPool: Pools byte slices in various size buckets (512B to 16MB)
//
// Usage example:
//
//	// Get a buffer
//	buf := mempool.GetBuffer(4096)
//	defer mempool.PutBuffer(buf)
