package store

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
)

// MemoryStore keeps records in a map. It backs tests and the memory driver.
type MemoryStore struct {
	records    map[string]models.TrendingRecord
	failWith   error
	mu         sync.RWMutex
	writeCalls int
	indexed    bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.TrendingRecord)}
}

// FailWith makes every subsequent storage call return a StoreError wrapping err. Pass nil to recover.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// WriteCalls returns how many batches reached the underlying map.
func (s *MemoryStore) WriteCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeCalls
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the record stored under key.
func (s *MemoryStore) Get(key string) (models.TrendingRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

// Indexed reports whether EnsureIndexes has run.
func (s *MemoryStore) Indexed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexed
}

func (s *MemoryStore) UpsertRecords(ctx context.Context, records []models.TrendingRecord) (*models.UpsertResult, error) {
	if len(records) == 0 {
		return &models.UpsertResult{}, nil
	}

	valid, failures := prepare(records)
	result := &models.UpsertResult{Failures: failures}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, &models.StoreError{Op: "upsert", Cause: s.failWith}
	}
	if err := ctx.Err(); err != nil {
		return nil, &models.StoreError{Op: "upsert", Cause: err}
	}

	s.writeCalls++

	for _, kr := range valid {
		existing, ok := s.records[kr.record.DocKey]
		switch {
		case !ok:
			result.Upserted++
		case reflect.DeepEqual(existing, kr.record):
			result.Matched++
		default:
			result.Matched++
			result.Modified++
		}
		s.records[kr.record.DocKey] = kr.record
	}

	return result, nil
}

func (s *MemoryStore) EnsureIndexes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return &models.StoreError{Op: "ensure indexes", Cause: s.failWith}
	}
	s.indexed = true
	return nil
}

func (s *MemoryStore) FindRecords(ctx context.Context, q Query) ([]models.TrendingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failWith != nil {
		return nil, &models.StoreError{Op: "find", Cause: s.failWith}
	}

	out := make([]models.TrendingRecord, 0)
	for _, r := range s.records {
		if r.RegionCode == q.Region && strings.HasPrefix(r.CapturedAt, q.CapturedPrefix) {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CapturedAt != out[j].CapturedAt {
			return out[i].CapturedAt > out[j].CapturedAt
		}
		return out[i].DocKey < out[j].DocKey
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListRegions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failWith != nil {
		return nil, &models.StoreError{Op: "list regions", Cause: s.failWith}
	}

	seen := make(map[string]struct{})
	for _, r := range s.records {
		seen[r.RegionCode] = struct{}{}
	}

	regions := make([]string, 0, len(seen))
	for region := range seen {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return regions, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failWith != nil {
		return &models.StoreError{Op: "ping", Cause: s.failWith}
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
