// Copyright 2025 The Jafka Authors.

package logstore

import (
	"testing"

	"github.com/jafka-project/jafka/pkg/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactoryBuildsAWorkingLog(t *testing.T) {
	factory := NewFactory(compression.None, 1<<20, nil, 0)

	log, err := factory(t.TempDir(), "orders", 0, false)
	require.NoError(t, err)
	defer log.Close()

	off, err := log.(*Log).Append([]byte("k"), []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
}
