package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
)

// ResultStore keeps computed runs retrievable by ID until they expire.
type ResultStore interface {
	Save(ctx context.Context, run *dto.ExamScheduleRun) error
	Get(ctx context.Context, id string) (*dto.ExamScheduleRun, error)
}

// MemoryResultStore keeps runs in process memory. Expired runs are dropped on
// read and by Sweep.
type MemoryResultStore struct {
	mu    sync.RWMutex
	items map[string]*dto.ExamScheduleRun
	now   func() time.Time
}

// NewMemoryResultStore builds an empty in-memory store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		items: make(map[string]*dto.ExamScheduleRun),
		now:   time.Now,
	}
}

// Save stores or replaces a run.
func (s *MemoryResultStore) Save(_ context.Context, run *dto.ExamScheduleRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[run.Summary.RunID] = run
	return nil
}

// Get returns the run or ErrNotFound once it is missing or expired.
func (s *MemoryResultStore) Get(_ context.Context, id string) (*dto.ExamScheduleRun, error) {
	s.mu.RLock()
	run, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	if s.now().After(run.Summary.ExpiresAt) {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrResultExpired, "schedule run expired, generate it again")
	}
	return run, nil
}

// Sweep drops every expired run and returns how many were removed.
func (s *MemoryResultStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, run := range s.items {
		if now.After(run.Summary.ExpiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// StartSweeper removes expired runs every interval until ctx is done.
func (s *MemoryResultStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// CachedResultStore keeps runs in Redis through CacheService so several API
// replicas can serve the same run.
type CachedResultStore struct {
	cache *CacheService
}

// NewCachedResultStore wraps an enabled cache service.
func NewCachedResultStore(cache *CacheService) *CachedResultStore {
	return &CachedResultStore{cache: cache}
}

// Save writes the run with a TTL matching its expiry.
func (s *CachedResultStore) Save(ctx context.Context, run *dto.ExamScheduleRun) error {
	ttl := time.Until(run.Summary.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, run.Summary.RunID, run, ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store schedule run")
	}
	return nil
}

// Get loads a run; Redis expiry makes missing and expired indistinguishable.
func (s *CachedResultStore) Get(ctx context.Context, id string) (*dto.ExamScheduleRun, error) {
	var run dto.ExamScheduleRun
	hit, err := s.cache.Get(ctx, id, &run)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	if !hit {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return &run, nil
}
