package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore("", "example.com_test", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewBadgerStore_ScratchDirectory(t *testing.T) {
	stateDir := t.TempDir()
	dbPath := filepath.Join(stateDir, "example.com_abc_"+visitedDBDir)

	// Leftovers from a previous run must not leak into a new crawl
	require.NoError(t, os.MkdirAll(dbPath, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dbPath, "stale"), []byte("x"), 0644))

	store, err := NewBadgerStore(stateDir, "example.com_abc", testLogger())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dbPath, "stale"))
	assert.True(t, os.IsNotExist(err), "stale file should have been wiped")

	added, err := store.MarkVisited("https://example.com/")
	require.NoError(t, err)
	assert.True(t, added)

	require.NoError(t, store.Close())
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "scratch directory should be removed on Close")
}

func TestBadgerStore_CorruptValueTreatedAsPending(t *testing.T) {
	store := newTestBadgerStore(t)
	key := []byte(pageKeyPrefix + "https://example.com/bad")
	require.NoError(t, store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte("{not json"))
	}))

	status, entry, err := store.CheckPageStatus("https://example.com/bad")
	require.NoError(t, err)
	assert.Equal(t, models.PageStatusPending, status)
	assert.Nil(t, entry)
}

func TestBadgerStore_DoubleClose(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), "example.com", testLogger())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestDBUpdateConflictRetry(t *testing.T) {
	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		store := newTestBadgerStore(t)
		attempts := 0
		err := store.dbUpdate(func(txn *badger.Txn) error {
			attempts++
			if attempts <= 3 {
				return badger.ErrConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 4, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		store := newTestBadgerStore(t)
		attempts := 0
		err := store.dbUpdate(func(txn *badger.Txn) error {
			attempts++
			return badger.ErrConflict
		})
		require.ErrorIs(t, err, utils.ErrDatabase)
		assert.Contains(t, err.Error(), "transaction conflict not resolved")
		assert.Equal(t, maxConflictRetries, attempts)
	})

	t.Run("non-conflict error returned immediately", func(t *testing.T) {
		store := newTestBadgerStore(t)
		attempts := 0
		sentinel := errors.New("some other error")
		err := store.dbUpdate(func(txn *badger.Txn) error {
			attempts++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, attempts)
	})
}
