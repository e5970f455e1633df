// Package store holds the deduplicated page corpus of the current crawl session.
package store

import (
	"strings"
	"sync"

	"github.com/amosWeiskopf/seosession/internal/metrics"
	"github.com/amosWeiskopf/seosession/internal/models"
)

// Store is a multiple-reader, single-writer page record store.
// Records keep crawl discovery order and are keyed by URL.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	pages      []models.PageRecord
	index      map[string]int
	progress   models.Progress
}

// BatchResult describes what an IngestBatch call did. Pages and Progress are read
// under the same lock as the writes.
type BatchResult struct {
	Accepted   int
	Duplicates int
	Rejected   []error
	Stale      bool
	Pages      int
	Progress   models.Progress
}

// View is a consistent read of records and progress
type View struct {
	Generation uint64
	Pages      []models.PageRecord
	Progress   models.Progress
}

// New creates an empty store at generation 1
func New() *Store {
	return &Store{
		generation: 1,
		index:      make(map[string]int),
	}
}

// Generation returns the current session marker
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Ingest inserts a single record. A record whose URL is already stored is ignored.
func (s *Store) Ingest(gen uint64, record models.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStaleGeneration
	}
	inserted, err := s.insertLocked(record)
	if err != nil {
		return &ValidationError{URL: record.URL, Err: err}
	}
	if inserted {
		metrics.CorpusPages.Set(float64(len(s.pages)))
	}
	return nil
}

// IngestBatch applies every record best effort and then advances the progress counters.
// Records and counters change under the same lock so no reader sees one without the other.
func (s *Store) IngestBatch(gen uint64, records []models.PageRecord, crawled, total int) BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return BatchResult{Stale: true}
	}

	var res BatchResult
	for i, rec := range records {
		inserted, err := s.insertLocked(rec)
		switch {
		case err != nil:
			res.Rejected = append(res.Rejected, &ValidationError{Index: i, URL: rec.URL, Err: err})
		case inserted:
			res.Accepted++
		default:
			res.Duplicates++
		}
	}
	s.advanceLocked(crawled, total)
	res.Pages = len(s.pages)
	res.Progress = s.progress
	metrics.CorpusPages.Set(float64(res.Pages))
	return res
}

func (s *Store) insertLocked(record models.PageRecord) (bool, error) {
	key := strings.TrimSpace(record.URL)
	if key == "" {
		return false, ErrMissingURL
	}
	if _, ok := s.index[key]; ok {
		return false, nil
	}
	record = record.Clone()
	record.URL = key
	s.index[key] = len(s.pages)
	s.pages = append(s.pages, record)
	return true, nil
}

// advanceLocked keeps both counters non-decreasing and crawled <= total once total is known
func (s *Store) advanceLocked(crawled, total int) {
	if total > s.progress.Total {
		s.progress.Total = total
	}
	if crawled > s.progress.Crawled {
		s.progress.Crawled = crawled
	}
	if s.progress.Total > 0 && s.progress.Crawled > s.progress.Total {
		s.progress.Crawled = s.progress.Total
	}
}

// Snapshot returns a point-in-time copy of the ordered corpus
func (s *Store) Snapshot() []models.PageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// View returns records and progress read together
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Generation: s.generation,
		Pages:      s.copyLocked(),
		Progress:   s.progress,
	}
}

// copyLocked copies the slice header contents. Stored records are never mutated after
// insertion, so sharing their nested slices with readers is safe.
func (s *Store) copyLocked() []models.PageRecord {
	out := make([]models.PageRecord, len(s.pages))
	copy(out, s.pages)
	return out
}

// Lookup returns the stored record for a URL
func (s *Store) Lookup(url string) (models.PageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[strings.TrimSpace(url)]
	if !ok {
		return models.PageRecord{}, false
	}
	return s.pages[i], true
}

// Len returns the number of stored records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// Progress returns the counters as of the last IngestBatch
func (s *Store) Progress() models.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Clear starts a new, empty session and returns its generation.
// Writes stamped with an earlier generation are discarded from now on.
func (s *Store) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.pages = nil
	s.index = make(map[string]int)
	s.progress = models.Progress{}
	metrics.CorpusPages.Set(0)
	return s.generation
}
