package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// backends opens one fresh store per implementation
func backends(t *testing.T) map[string]VisitedStore {
	t.Helper()
	stores := map[string]VisitedStore{}

	mem, err := Open(config.VisitedStoreMemory, "", "mem", testLogger())
	require.NoError(t, err)
	stores["memory"] = mem

	inMem, err := Open(config.VisitedStoreBadger, "", "badger-mem", testLogger())
	require.NoError(t, err)
	stores["badger in-memory"] = inMem

	onDisk, err := Open(config.VisitedStoreBadger, t.TempDir(), "badger-disk", testLogger())
	require.NoError(t, err)
	stores["badger on disk"] = onDisk

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open("redis", "", "x", testLogger())
	require.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestVisitedStore_MarkVisited(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			added, err := store.MarkVisited("https://example.com/page1")
			require.NoError(t, err)
			assert.True(t, added, "new URL returns true")

			added, err = store.MarkVisited("https://example.com/page1")
			require.NoError(t, err)
			assert.False(t, added, "duplicate returns false")

			_, err = store.MarkVisited("https://example.com/page2")
			require.NoError(t, err)
			count, err := store.GetVisitedCount()
			require.NoError(t, err)
			assert.Equal(t, 2, count)
		})
	}
}

func TestVisitedStore_MarkVisitedIsAtomic(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const goroutines = 32
			var winners atomic.Int64
			var wg sync.WaitGroup
			start := make(chan struct{})
			for range goroutines {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					added, err := store.MarkVisited("https://example.com/contended")
					assert.NoError(t, err)
					if added {
						winners.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()
			assert.Equal(t, int64(1), winners.Load(), "exactly one caller may add a URL")
		})
	}
}

func TestVisitedStore_Status(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			status, entry, err := store.CheckPageStatus("https://example.com/unknown")
			require.NoError(t, err)
			assert.Equal(t, models.PageStatusNotFound, status)
			assert.Nil(t, entry)

			_, err = store.MarkVisited("https://example.com/a")
			require.NoError(t, err)
			status, _, err = store.CheckPageStatus("https://example.com/a")
			require.NoError(t, err)
			assert.Equal(t, models.PageStatusPending, status)

			now := time.Now().UTC().Truncate(time.Second)
			require.NoError(t, store.UpdatePageStatus("https://example.com/a", &models.PageDBEntry{
				Status:      models.PageStatusFetchFailed,
				ErrorType:   "Fetch_HTTP_404",
				Error:       "not found",
				Depth:       2,
				LastAttempt: now,
			}))
			status, entry, err = store.CheckPageStatus("https://example.com/a")
			require.NoError(t, err)
			assert.Equal(t, models.PageStatusFetchFailed, status)
			require.NotNil(t, entry)
			assert.Equal(t, "Fetch_HTTP_404", entry.ErrorType)
			assert.Equal(t, 2, entry.Depth)
			assert.True(t, now.Equal(entry.LastAttempt))

			count, err := store.GetVisitedCount()
			require.NoError(t, err)
			assert.Equal(t, 1, count, "updating a marked URL does not add a key")

			err = store.UpdatePageStatus("https://example.com/a", &models.PageDBEntry{Status: models.PageStatusDBError})
			assert.ErrorIs(t, err, utils.ErrDatabase)
			err = store.UpdatePageStatus("https://example.com/a", nil)
			assert.ErrorIs(t, err, utils.ErrDatabase)
		})
	}
}

func TestVisitedStore_WriteVisitedLog(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, u := range []string{"https://b.example/", "https://a.example/", "https://c.example/"} {
				_, err := store.MarkVisited(u)
				require.NoError(t, err)
			}
			require.NoError(t, store.UpdatePageStatus("https://a.example/", &models.PageDBEntry{Status: models.PageStatusDownloaded}))

			outPath := filepath.Join(t.TempDir(), "visited.log")
			require.NoError(t, store.WriteVisitedLog(outPath))

			data, err := os.ReadFile(outPath)
			require.NoError(t, err)
			want := fmt.Sprintf("%s\t%s\n%s\t%s\n%s\t%s\n",
				"https://a.example/", models.PageStatusDownloaded,
				"https://b.example/", models.PageStatusPending,
				"https://c.example/", models.PageStatusPending)
			assert.Equal(t, want, string(data))

			assert.Error(t, store.WriteVisitedLog("/nonexistent/dir/file.log"))
		})
	}
}
