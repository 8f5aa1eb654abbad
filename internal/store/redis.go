package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swapdesk/swap-desk/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for drafts. Writes go to the primary store and refresh or
// invalidate the cache; reads check Redis first then fall back to the
// primary. The submission ledger is never cached.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) CreateDraft(ctx context.Context, d *model.Draft) error {
	if err := s.primary.CreateDraft(ctx, d); err != nil {
		return err
	}
	s.cacheDraft(ctx, d)
	return nil
}

func (s *CachedStore) SaveDraft(ctx context.Context, d *model.Draft) error {
	if err := s.primary.SaveDraft(ctx, d); err != nil {
		// The primary may have lost the draft; never serve a stale copy.
		s.rdb.Del(ctx, draftKey(d.ID))
		return err
	}
	s.cacheDraft(ctx, d)
	return nil
}

func (s *CachedStore) DeleteDraft(ctx context.Context, id string) error {
	if err := s.primary.DeleteDraft(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, draftKey(id))
	return nil
}

// PurgeDrafts purges the primary and evicts the purged drafts from Redis.
func (s *CachedStore) PurgeDrafts(ctx context.Context, before time.Time, skip []string) ([]string, error) {
	purged, err := s.primary.PurgeDrafts(ctx, before, skip)
	if len(purged) > 0 {
		keys := make([]string, len(purged))
		for i, id := range purged {
			keys[i] = draftKey(id)
		}
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			slog.Warn("draft cache eviction failed", "count", len(keys), "err", err)
		}
	}
	return purged, err
}

// --- Read-through ---

func (s *CachedStore) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	data, err := s.rdb.Get(ctx, draftKey(id)).Bytes()
	if err == nil {
		if d, err := decodeDraft(data); err == nil {
			return d, nil
		}
	}

	// Cache miss: read from primary.
	d, err := s.primary.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheDraft(ctx, d)
	return d, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	return s.primary.InsertSubmission(ctx, sub)
}

func (s *CachedStore) GetSubmissionsByUser(ctx context.Context, userID string) ([]model.Submission, error) {
	return s.primary.GetSubmissionsByUser(ctx, userID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheDraft(ctx context.Context, d *model.Draft) {
	if data, err := json.Marshal(d); err == nil {
		s.rdb.Set(ctx, draftKey(d.ID), data, s.ttl)
	}
}

func draftKey(id string) string { return fmt.Sprintf("draft:%s", id) }

func encodeDraft(d *model.Draft) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode draft %s: %w", d.ID, err)
	}
	return string(data), nil
}

func decodeDraft(data []byte) (*model.Draft, error) {
	var d model.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}
