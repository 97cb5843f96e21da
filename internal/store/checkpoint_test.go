package store

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cf := NewCheckpointFile(dir)

	ts := time.Date(2021, 3, 1, 14, 2, 33, 0, time.Local)
	require.NoError(t, cf.Save(Checkpoint{LastProcessed: 140, Completed: 140, Total: 512, Timestamp: ts}))

	data, err := os.ReadFile(cf.Path())
	require.NoError(t, err)
	assert.Equal(t,
		"Last processed index: 140\nArticles downloaded: 140/512\nTimestamp: 2021-03-01 14:02:33\n",
		string(data))

	cp, found, err := cf.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 140, cp.LastProcessed)
	assert.Equal(t, 140, cp.Completed)
	assert.Equal(t, 512, cp.Total)
	assert.Equal(t, ts, cp.Timestamp)
}

func TestCheckpointLoadMissing(t *testing.T) {
	cf := NewCheckpointFile(t.TempDir())
	_, found, err := cf.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckpointLoadGarbage(t *testing.T) {
	dir := t.TempDir()
	cf := NewCheckpointFile(dir)
	require.NoError(t, os.WriteFile(cf.Path(), []byte("not a checkpoint\n"), 0o600))

	_, found, err := cf.Load()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCheckpointSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cf := NewCheckpointFile(dir)
	require.NoError(t, cf.Save(Checkpoint{LastProcessed: 1, Completed: 1, Total: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "progress.txt", entries[0].Name())
}

func TestCheckpointOverwrite(t *testing.T) {
	dir := t.TempDir()
	cf := NewCheckpointFile(dir)
	require.NoError(t, cf.Save(Checkpoint{LastProcessed: 10, Completed: 10, Total: 100}))
	require.NoError(t, cf.Save(Checkpoint{LastProcessed: 20, Completed: 20, Total: 100}))

	cp, found, err := cf.Load()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, cp.LastProcessed)
}
