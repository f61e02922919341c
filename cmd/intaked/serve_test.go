package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/pipeline"
)

func TestBuildStore_DurableByDefault(t *testing.T) {
	// Exactly-once across restarts needs the sqlite store; serve must not
	// silently run on memory in a default deployment.
	t.Setenv("HOME", t.TempDir())

	store, err := buildStore(config.Default())
	require.NoError(t, err)
	defer store.Close()

	_, durable := store.(*pipeline.SQLiteStore)
	assert.True(t, durable)

	path, err := defaultOutcomeDBPath()
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestBuildStore_ExplicitMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.OutcomeDB = memoryOutcomeDB

	store, err := buildStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	_, inMemory := store.(*pipeline.MemoryStore)
	assert.True(t, inMemory)
}

func TestBuildStore_CreatesParentDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.OutcomeDB = filepath.Join(t.TempDir(), "state", "outcomes.db")

	store, err := buildStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	_, durable := store.(*pipeline.SQLiteStore)
	assert.True(t, durable)
}
