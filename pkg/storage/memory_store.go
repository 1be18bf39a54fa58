package storage

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/web-crawler/pkg/models"
	"github.com/Sriram-PR/web-crawler/pkg/utils"
)

// MemoryStore is a map-backed VisitedStore
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.PageDBEntry // nil value = pending
	log     *logrus.Entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *logrus.Entry) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*models.PageDBEntry),
		log:     logger,
	}
}

func (s *MemoryStore) MarkVisited(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[url]; exists {
		return false, nil
	}
	s.entries[url] = nil
	return true, nil
}

func (s *MemoryStore) UpdatePageStatus(url string, entry *models.PageDBEntry) error {
	if entry == nil || !entry.Status.IsValid() {
		return fmt.Errorf("%w: invalid page entry for '%s'", utils.ErrDatabase, url)
	}
	stored := *entry
	s.mu.Lock()
	s.entries[url] = &stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CheckPageStatus(url string) (models.PageStatus, *models.PageDBEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.entries[url]
	switch {
	case !exists:
		return models.PageStatusNotFound, nil, nil
	case entry == nil:
		return models.PageStatusPending, nil, nil
	}
	found := *entry
	return found.Status, &found, nil
}

func (s *MemoryStore) GetVisitedCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// snapshot returns url -> status sorted by url
func (s *MemoryStore) snapshot() ([]string, map[string]models.PageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := make([]string, 0, len(s.entries))
	statuses := make(map[string]models.PageStatus, len(s.entries))
	for url, entry := range s.entries {
		urls = append(urls, url)
		if entry == nil {
			statuses[url] = models.PageStatusPending
		} else {
			statuses[url] = entry.Status
		}
	}
	sort.Strings(urls)
	return urls, statuses
}

func (s *MemoryStore) WriteVisitedLog(filePath string) error {
	urls, statuses := s.snapshot()

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create visited log '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, url := range urls {
		if _, err := fmt.Fprintf(writer, "%s\t%s\n", url, statuses[url]); err != nil {
			return fmt.Errorf("write visited log '%s': %w", filePath, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush visited log '%s': %w", filePath, err)
	}
	s.log.Infof("Wrote %d URLs to visited log: %s", len(urls), filePath)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
