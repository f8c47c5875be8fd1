package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/contractscore/model"
)

// MemoryStore keeps contracts and results in process memory.
// Contracts are never evicted; deletion is left to whoever owns the data.
type MemoryStore struct {
	contracts map[string]*model.Contract
	results   map[string]*model.ExtractionResult
	mu        sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]*model.Contract),
		results:   make(map[string]*model.ExtractionResult),
	}
}

func (s *MemoryStore) Create(_ context.Context, contract *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := contract.Clone()
	cp.UpdatedAt = time.Now()
	s.contracts[cp.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]*model.Contract, int64, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	matched := make([]*model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		if opts.Status == "" || c.Status == opts.Status {
			matched = append(matched, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UploadDate.Equal(matched[j].UploadDate) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UploadDate.After(matched[j].UploadDate)
	})

	total := int64(len(matched))
	start := min(opts.Offset(), len(matched))
	end := min(start+opts.PageSize, len(matched))
	return matched[start:end], total, nil
}

func (s *MemoryStore) Transition(_ context.Context, id, from, to, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != from {
		return ErrStatusConflict
	}
	c.Status = to
	c.ErrorMessage = errMsg
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetProgress(_ context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != model.StatusProcessing {
		return ErrStatusConflict
	}
	if progress > c.Progress {
		c.Progress = progress
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, r *model.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contracts[r.ContractID]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.results[r.ContractID] = &cp
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, contractID string) (*model.ExtractionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[contractID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) DeleteResult(_ context.Context, contractID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, contractID)
	return nil
}

func (s *MemoryStore) Scores(_ context.Context, contractIDs []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make(map[string]float64, len(contractIDs))
	for _, id := range contractIDs {
		if r, ok := s.results[id]; ok {
			scores[id] = r.ConfidenceScore
		}
	}
	return scores, nil
}

// Count returns the number of contracts in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}

func (s *MemoryStore) Close() error { return nil }
