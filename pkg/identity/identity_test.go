package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_CreatesAndPersistsIdentity(t *testing.T) {
	home := t.TempDir()
	store := NewFileStoreAt(home)

	first, err := store.Load()
	require.NoError(t, err)
	require.NotEmpty(t, first.UserID)

	// A second load (or a second store over the same directory) must
	// return the same identifier.
	second, err := NewFileStoreAt(home).Load()
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)

	data, err := os.ReadFile(filepath.Join(home, ".automagik", "user_id"))
	require.NoError(t, err)
	assert.Equal(t, first.UserID, string(data))
}

func TestFileStore_OptOutRoundTrip(t *testing.T) {
	store := NewFileStoreAt(t.TempDir())

	assert.False(t, store.OptedOut())
	require.NoError(t, store.SetOptOut(true))
	assert.True(t, store.OptedOut())

	// Setting an already-set preference is a no-op, not an error.
	require.NoError(t, store.SetOptOut(true))

	require.NoError(t, store.SetOptOut(false))
	assert.False(t, store.OptedOut())
	require.NoError(t, store.SetOptOut(false))
}

func TestMemoryStore_StableWithinProcess(t *testing.T) {
	store := NewMemoryStore()

	first, err := store.Load()
	require.NoError(t, err)
	second, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)

	require.NoError(t, store.SetOptOut(true))
	assert.True(t, store.OptedOut())
}

func TestWatchOptOut_ReportsChanges(t *testing.T) {
	store := NewFileStoreAt(t.TempDir())

	changes := make(chan bool, 4)
	watcher, err := WatchOptOut(store, func(optedOut bool) {
		changes <- optedOut
	})
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, store.SetOptOut(true))
	assert.True(t, waitForChange(t, changes))

	require.NoError(t, store.SetOptOut(false))
	assert.False(t, waitForChange(t, changes))
}

func waitForChange(t *testing.T, changes <-chan bool) bool {
	t.Helper()
	select {
	case v := <-changes:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for opt-out change")
		return false
	}
}
