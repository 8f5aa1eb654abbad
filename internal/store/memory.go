package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/swapdesk/swap-desk/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	drafts      map[string]*model.Draft
	submissions []model.Submission
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts: make(map[string]*model.Draft),
	}
}

func (s *MemoryStore) CreateDraft(_ context.Context, d *model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[d.ID]; ok {
		return fmt.Errorf("draft %s already exists", d.ID)
	}
	cp, err := copyDraft(d)
	if err != nil {
		return err
	}
	s.drafts[d.ID] = cp
	return nil
}

func (s *MemoryStore) GetDraft(_ context.Context, id string) (*model.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, ErrNotFound)
	}
	return copyDraft(d)
}

func (s *MemoryStore) SaveDraft(_ context.Context, d *model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[d.ID]; !ok {
		return fmt.Errorf("draft %s: %w", d.ID, ErrNotFound)
	}
	cp, err := copyDraft(d)
	if err != nil {
		return err
	}
	s.drafts[d.ID] = cp
	return nil
}

func (s *MemoryStore) DeleteDraft(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, id)
	return nil
}

func (s *MemoryStore) PurgeDrafts(_ context.Context, before time.Time, skip []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(skip))
	for _, id := range skip {
		keep[id] = true
	}

	var purged []string
	for id, d := range s.drafts {
		if d.UpdatedAt.Before(before) && !keep[id] {
			delete(s.drafts, id)
			purged = append(purged, id)
		}
	}
	return purged, nil
}

func (s *MemoryStore) InsertSubmission(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions = append(s.submissions, copySubmission(*sub))
	return nil
}

func (s *MemoryStore) GetSubmissionsByUser(_ context.Context, userID string) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Submission
	for _, sub := range s.submissions {
		if sub.FromUserID == userID {
			result = append(result, copySubmission(sub))
		}
	}
	return result, nil
}

// copySubmission detaches the product id slices from the caller's record.
func copySubmission(sub model.Submission) model.Submission {
	sub.OfferedProductIDs = append([]int64(nil), sub.OfferedProductIDs...)
	sub.RequestedProductIDs = append([]int64(nil), sub.RequestedProductIDs...)
	if sub.TradeID != nil {
		id := *sub.TradeID
		sub.TradeID = &id
	}
	return sub
}

// copyDraft deep-copies a draft so callers never share slot slices with
// the store.
func copyDraft(d *model.Draft) (*model.Draft, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("copy draft %s: %w", d.ID, err)
	}
	var cp model.Draft
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("copy draft %s: %w", d.ID, err)
	}
	return &cp, nil
}
