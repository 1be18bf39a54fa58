package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/log"
	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

const (
	pageKeyPrefix = "page:"      // Prefix for page URL keys in DB
	visitedDBDir  = "visited_db" // Suffix for the per-crawl Badger directory within stateDir
)

// BadgerStore implements VisitedStore on BadgerDB. With an empty stateDir it runs fully
// in memory; otherwise it uses a scratch directory that is wiped on open and on Close.
type BadgerStore struct {
	db       *badger.DB
	dbPath   string // Empty when in-memory
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) GetVisitedCount
}

// NewBadgerStore opens an empty store for one crawl
func NewBadgerStore(stateDir, name string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}
	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))

	var opts badger.Options
	if stateDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		logger.Debug("Initializing in-memory visited URL database")
	} else {
		store.dbPath = filepath.Join(stateDir, utils.SanitizePathComponent(name)+"_"+visitedDBDir)
		// No state survives between runs
		if err := os.RemoveAll(store.dbPath); err != nil {
			logger.Errorf("Failed to remove stale state directory %s: %v", store.dbPath, err)
		}
		if err := os.MkdirAll(store.dbPath, 0755); err != nil {
			return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrDatabase, store.dbPath, err)
		}
		opts = badger.DefaultOptions(store.dbPath)
		logger.Debugf("Initializing visited URL database at: %s", store.dbPath)
	}
	opts = opts.WithLogger(badgerLogger).WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database: %w", utils.ErrDatabase, err)
	}
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkVisited inserts the key with an empty value if absent. A conflicting concurrent
// insert makes this transaction retry and then observe the key, so exactly one caller wins.
func (s *BadgerStore) MarkVisited(url string) (bool, error) {
	key := []byte(pageKeyPrefix + url)
	var added bool

	err := s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, []byte{})); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet // nil if the key exists
	})
	if err != nil {
		return false, fmt.Errorf("%w: marking page key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

func (s *BadgerStore) UpdatePageStatus(url string, entry *models.PageDBEntry) error {
	if entry == nil || !entry.Status.IsValid() {
		return fmt.Errorf("%w: invalid page entry for '%s'", utils.ErrDatabase, url)
	}
	key := []byte(pageKeyPrefix + url)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: failed to marshal PageDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJSON)
	}

	var isNew bool
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		return fmt.Errorf("%w: failed setting page status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// decodeStatus interprets a stored value; empty means pending
func decodeStatus(val []byte) (models.PageStatus, *models.PageDBEntry, error) {
	if len(val) == 0 {
		return models.PageStatusPending, nil, nil
	}
	var entry models.PageDBEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return models.PageStatusPending, nil, err
	}
	return entry.Status, &entry, nil
}

func (s *BadgerStore) CheckPageStatus(url string) (models.PageStatus, *models.PageDBEntry, error) {
	status := models.PageStatusNotFound
	var entry *models.PageDBEntry
	key := []byte(pageKeyPrefix + url)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting page key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			status, entry, decodeErr = decodeStatus(val)
			if decodeErr != nil {
				s.log.Warnf("Failed to unmarshal PageDBEntry for key '%s': %v. Treating as 'pending'.", string(key), decodeErr)
			}
			return nil
		})
	})
	if errView != nil {
		return models.PageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// GetVisitedCount returns the cached key count maintained on writes
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// WriteVisitedLog iterates keys in order, so the output is already sorted by URL.
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create visited log '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writtenCount := 0
	prefix := []byte(pageKeyPrefix)

	iterErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			url := string(item.Key()[len(prefix):])
			var status models.PageStatus
			if errValue := item.Value(func(val []byte) error {
				status, _, _ = decodeStatus(val)
				return nil
			}); errValue != nil {
				return errValue
			}
			if _, errWrite := fmt.Fprintf(writer, "%s\t%s\n", url, status); errWrite != nil {
				return errWrite
			}
			writtenCount++
		}
		return nil
	})
	if iterErr != nil {
		return fmt.Errorf("%w: writing visited log '%s': %w", utils.ErrDatabase, filePath, iterErr)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush visited log '%s': %w", filePath, err)
	}
	s.log.Infof("Wrote %d URLs to visited log: %s", writtenCount, filePath)
	return nil
}

// Close closes the database and removes its scratch directory
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing visited DB: %v", err)
		return fmt.Errorf("%w: close: %w", utils.ErrDatabase, err)
	}
	if s.dbPath != "" {
		if err := os.RemoveAll(s.dbPath); err != nil {
			s.log.Warnf("Failed to remove state directory %s: %v", s.dbPath, err)
		}
	}
	s.log.Debug("Visited DB closed.")
	return nil
}
