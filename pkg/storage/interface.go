package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/config"
	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// VisitedStore records every URL scheduled during one crawl and its outcome.
// A store lives exactly as long as the crawl that created it.
type VisitedStore interface {
	// MarkVisited atomically inserts url in the pending state.
	// Returns true if the URL was newly added, false if it was already present.
	MarkVisited(url string) (bool, error)

	// UpdatePageStatus records the outcome for a URL
	UpdatePageStatus(url string, entry *models.PageDBEntry) error

	// CheckPageStatus returns PageStatusNotFound for unknown URLs, PageStatusPending for
	// scheduled URLs without an outcome yet, otherwise the stored status and entry.
	CheckPageStatus(url string) (models.PageStatus, *models.PageDBEntry, error)

	// GetVisitedCount returns the number of URLs marked so far
	GetVisitedCount() (int, error)

	// WriteVisitedLog writes one "url<TAB>status" line per URL, sorted by URL
	WriteVisitedLog(filePath string) error

	// Close releases the store and any scratch files
	Close() error
}

// Open creates an empty store of the given kind for one crawl.
// name identifies the crawl (see utils.CrawlDirName) and is used for on-disk scratch space.
func Open(kind, stateDir, name string, logger *logrus.Entry) (VisitedStore, error) {
	switch kind {
	case "", config.VisitedStoreMemory:
		return NewMemoryStore(logger), nil
	case config.VisitedStoreBadger:
		return NewBadgerStore(stateDir, name, logger)
	default:
		return nil, fmt.Errorf("%w: unknown visited store '%s'", utils.ErrConfigValidation, kind)
	}
}
