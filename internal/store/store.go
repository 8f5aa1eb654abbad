// Package store defines the persistence interface for swap-desk.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for drafts), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/swapdesk/swap-desk/internal/model"
)

// ErrNotFound is returned when a draft does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer for drafts.
type Store interface {
	// --- Draft operations ---

	// CreateDraft persists a new draft.
	CreateDraft(ctx context.Context, d *model.Draft) error

	// GetDraft retrieves a draft by its ID. Returns ErrNotFound if absent.
	GetDraft(ctx context.Context, id string) (*model.Draft, error)

	// SaveDraft replaces the stored state of an existing draft.
	SaveDraft(ctx context.Context, d *model.Draft) error

	// DeleteDraft removes a draft. Deleting a missing draft is not an error.
	DeleteDraft(ctx context.Context, id string) error

	// PurgeDrafts deletes drafts not updated since before, except those
	// named in skip, and returns the ids it removed.
	PurgeDrafts(ctx context.Context, before time.Time, skip []string) ([]string, error)

	// --- Immutable submission ledger ---

	// InsertSubmission appends an immutable submission record.
	InsertSubmission(ctx context.Context, s *model.Submission) error

	// GetSubmissionsByUser returns all submissions sent by a user, oldest first.
	GetSubmissionsByUser(ctx context.Context, userID string) ([]model.Submission, error)
}
