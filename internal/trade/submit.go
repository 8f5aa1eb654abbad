package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swapdesk/swap-desk/internal/draft"
	"github.com/swapdesk/swap-desk/internal/metrics"
	"github.com/swapdesk/swap-desk/internal/model"
	"github.com/swapdesk/swap-desk/internal/store"
)

var (
	// ErrDraftIncomplete is returned when either slot of the draft is empty.
	ErrDraftIncomplete = draft.ErrIncomplete

	// ErrSubmissionInFlight is returned when the draft is already being submitted.
	ErrSubmissionInFlight = errors.New("trade: submission already in flight")

	// ErrSubmissionFailure wraps transport and non-2xx errors from the backend.
	ErrSubmissionFailure = errors.New("trade: submission failed")
)

// TradeCreator posts trade offers to the marketplace backend.
type TradeCreator interface {
	CreateTrade(ctx context.Context, dto model.CreateTradeOfferDTO) (*model.TradeOffer, error)
}

// Submitter hands finished drafts to the backend. At most one submission
// per draft is in flight at a time; a failed submission leaves the stored
// draft untouched so it can be retried.
type Submitter struct {
	backend  TradeCreator
	store    store.Store
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSubmitter creates a submitter that records successful submissions in st.
func NewSubmitter(backend TradeCreator, st store.Store) *Submitter {
	return &Submitter{
		backend:  backend,
		store:    st,
		inFlight: make(map[string]struct{}),
	}
}

// InFlight reports whether draftID is currently being submitted.
func (s *Submitter) InFlight(draftID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[draftID]
	return ok
}

// InFlightIDs returns the ids of drafts currently being submitted.
func (s *Submitter) InFlightIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	return ids
}

// Submit sends d to the backend. On success the draft is deleted from the
// store and the returned submission has been appended to the ledger.
func (s *Submitter) Submit(ctx context.Context, d model.Draft) (*model.Submission, error) {
	if err := s.begin(d); err != nil {
		return nil, err
	}
	return s.finish(ctx, d)
}

// begin validates d and marks it in flight.
func (s *Submitter) begin(d model.Draft) error {
	if !draft.Complete(d) {
		metrics.SubmissionsTotal.WithLabelValues("incomplete").Inc()
		return ErrDraftIncomplete
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[d.ID]; ok {
		metrics.SubmissionsTotal.WithLabelValues("in_flight").Inc()
		return ErrSubmissionInFlight
	}
	s.inFlight[d.ID] = struct{}{}
	return nil
}

func (s *Submitter) end(draftID string) {
	s.mu.Lock()
	delete(s.inFlight, draftID)
	s.mu.Unlock()
}

// finish performs the backend call for a draft already marked by begin.
func (s *Submitter) finish(ctx context.Context, d model.Draft) (*model.Submission, error) {
	defer s.end(d.ID)

	dto, err := draft.BuildOffer(d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	created, err := s.backend.CreateTrade(ctx, dto)
	metrics.SubmissionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("backend_error").Inc()
		slog.Warn("trade submission failed", "draft", d.ID, "from", d.FromUserID, "to", d.ToUserID, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailure, err)
	}

	sub := &model.Submission{
		ID:                  uuid.New().String(),
		DraftID:             d.ID,
		FromUserID:          dto.FromUserID,
		ToUserID:            dto.ToUserID,
		OfferedProductIDs:   dto.OfferedProductIDs,
		RequestedProductIDs: dto.RequestedProductIDs,
		FromUserCash:        dto.FromUserCash,
		ToUserCash:          dto.ToUserCash,
		Message:             dto.Message,
		SubmittedAt:         time.Now().UTC(),
	}
	if created != nil {
		id := created.ID
		sub.TradeID = &id
	}

	// The trade exists upstream now; local bookkeeping failures are logged,
	// not returned, so the client does not resubmit.
	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		slog.Error("failed to record submission", "draft", d.ID, "err", err)
	}
	if err := s.store.DeleteDraft(ctx, d.ID); err != nil {
		slog.Error("failed to delete submitted draft", "draft", d.ID, "err", err)
	} else {
		metrics.OpenDrafts.Dec()
	}

	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
	slog.Info("trade offer submitted",
		"draft", d.ID,
		"submission", sub.ID,
		"from", sub.FromUserID,
		"to", sub.ToUserID,
		"offered", len(sub.OfferedProductIDs),
		"requested", len(sub.RequestedProductIDs),
		"from_cash", sub.FromUserCash.String(),
		"to_cash", sub.ToUserCash.String(),
	)
	return sub, nil
}
