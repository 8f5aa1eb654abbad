// Package trade provides the HTTP handlers and business logic for
// composing trade drafts, placing items into their slots, and submitting
// finished offers to the marketplace backend.
//
// All monetary values use shopspring/decimal, never float64.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/swapdesk/swap-desk/internal/backend"
	"github.com/swapdesk/swap-desk/internal/catalog"
	"github.com/swapdesk/swap-desk/internal/draft"
	"github.com/swapdesk/swap-desk/internal/itemref"
	"github.com/swapdesk/swap-desk/internal/metrics"
	"github.com/swapdesk/swap-desk/internal/model"
	"github.com/swapdesk/swap-desk/internal/store"
)

var (
	// ErrItemNotInDraft is returned when dragging a cash item id the draft
	// does not hold.
	ErrItemNotInDraft = errors.New("trade: item not in draft")

	// ErrForeignProduct is returned for products owned by neither party.
	ErrForeignProduct = errors.New("trade: product belongs to neither party")

	// ErrSameUser is returned when a draft names the same user on both sides.
	ErrSameUser = errors.New("trade: sender and recipient must differ")
)

// Catalog is the read side the service needs from the item registry.
type Catalog interface {
	Lookup(ctx context.Context, productID int64) (model.Product, error)
	ListOwnedBy(ctx context.Context, userID string, f catalog.Filter) ([]model.Product, error)
	ListAvailableFrom(ctx context.Context, userID string, f catalog.Filter) ([]model.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// Backend is the marketplace backend as seen by the service.
type Backend interface {
	TradeCreator
	GetTrade(ctx context.Context, tradeID int64, userID string) (*model.TradeOffer, error)
	ListTrades(ctx context.Context, userID string, sentOffers bool) ([]model.TradeOffer, error)
	UpdateTradeStatus(ctx context.Context, tradeID int64, status string) (*model.TradeOffer, error)
}

// Service handles draft operations. Uses a mutex for serialized draft
// mutation (single-instance). Submission releases the mutex for the
// backend round trip; the submitter's in-flight set keeps the draft frozen
// meanwhile.
type Service struct {
	store     store.Store
	catalog   Catalog
	backend   Backend
	submitter *Submitter
	capacity  int
	mu        sync.Mutex
	wsHub     *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service. capacity <= 0 selects
// draft.DefaultCapacity. Pass nil for hub if WebSocket broadcasting is not
// needed.
func NewService(st store.Store, cat Catalog, be Backend, hub *WSHub, capacity int) *Service {
	if capacity <= 0 {
		capacity = draft.DefaultCapacity
	}
	return &Service{
		store:     st,
		catalog:   cat,
		backend:   be,
		submitter: NewSubmitter(be, st),
		capacity:  capacity,
		wsHub:     hub,
	}
}

// Routes mounts the draft, catalog, submission and trade endpoints on r.
func (s *Service) Routes(r chi.Router) {
	// Draft lifecycle.
	r.Post("/drafts", s.CreateDraft)
	r.Route("/drafts/{draftID}", func(r chi.Router) {
		r.Get("/", s.GetDraft)
		r.Delete("/", s.DeleteDraft)
		r.Put("/message", s.SetMessage)

		// Drag and drop.
		r.Post("/drag", s.DragStart)
		r.Delete("/drag", s.DragCancel)
		r.Post("/dragover", s.DragOver)
		r.Post("/drop", s.Drop)

		// Direct slot edits.
		r.Post("/slots/{slotID}/products", s.PlaceProduct)
		r.Post("/slots/{slotID}/cash", s.SetCash)
		r.Delete("/slots/{slotID}/items/{itemID}", s.RemoveItem)

		r.Post("/submit", s.Submit)
	})

	// Candidate items.
	r.Get("/catalog/owned/{userID}", s.ListOwned)
	r.Get("/catalog/available/{userID}", s.ListAvailable)
	r.Get("/catalog/categories", s.ListCategories)

	// Submission ledger and backend trade records.
	r.Get("/submissions/{userID}", s.ListSubmissions)
	r.Get("/trades", s.ListTrades)
	r.Get("/trades/{tradeID}", s.GetTrade)
	r.Patch("/trades/{tradeID}/status", s.UpdateTradeStatus)
}

// --- Request/Response types ---

// CreateDraftRequest is the JSON body for draft creation.
type CreateDraftRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Capacity   int    `json:"capacity"` // per slot; 0 → service default
}

// MessageRequest is the JSON body for PUT /drafts/{draftID}/message.
type MessageRequest struct {
	Message string `json:"message"`
}

// DragRequest is the JSON body for POST /drafts/{draftID}/drag. Exactly one
// of the fields names the dragged item.
type DragRequest struct {
	ProductID int64            `json:"product_id,omitempty"` // from a catalog listing
	ItemID    string           `json:"item_id,omitempty"`    // already in a slot
	Amount    *decimal.Decimal `json:"amount,omitempty"`     // new cash item
}

// SlotRequest is the JSON body for dragover and drop.
type SlotRequest struct {
	Slot model.SlotID `json:"slot"`
}

// PlaceProductRequest is the JSON body for POST .../slots/{slotID}/products.
type PlaceProductRequest struct {
	ProductID int64 `json:"product_id"`
}

// CashRequest is the JSON body for POST .../slots/{slotID}/cash.
type CashRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// StatusRequest is the JSON body for PATCH /trades/{tradeID}/status.
type StatusRequest struct {
	Status string `json:"status"` // accepted or declined
}

// DraftView is a draft plus its derived values. Values are recomputed on
// every view.
type DraftView struct {
	model.Draft
	OfferedValue   decimal.Decimal `json:"offered_value"`
	RequestedValue decimal.Decimal `json:"requested_value"`
	Balance        decimal.Decimal `json:"balance"` // offered - requested
	CanSubmit      bool            `json:"can_submit"`
	Submitting     bool            `json:"submitting"`
}

// PlacementResponse is returned by every draft mutation. Rejected
// placements still answer 200; Outcome says why nothing changed.
type PlacementResponse struct {
	Draft   DraftView     `json:"draft"`
	Outcome draft.Outcome `json:"outcome"`
}

// ProductsResponse wraps catalog listings.
type ProductsResponse struct {
	Products []model.Product `json:"products"`
	Error    string          `json:"error,omitempty"`
}

func (s *Service) view(d model.Draft) DraftView {
	offered := draft.SlotValue(d.Offered)
	requested := draft.SlotValue(d.Requested)
	submitting := s.submitter.InFlight(d.ID)
	return DraftView{
		Draft:          d,
		OfferedValue:   offered,
		RequestedValue: requested,
		Balance:        offered.Sub(requested),
		CanSubmit:      draft.Complete(d) && !submitting,
		Submitting:     submitting,
	}
}

// --- Draft lifecycle ---

// CreateDraft handles POST /api/v1/drafts
func (s *Service) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.FromUserID == "" || req.ToUserID == "" {
		writeError(w, "from_user_id and to_user_id are required", http.StatusBadRequest)
		return
	}
	if req.FromUserID == req.ToUserID {
		writeError(w, ErrSameUser.Error(), http.StatusBadRequest)
		return
	}
	if req.Capacity < 0 {
		writeError(w, "capacity must not be negative", http.StatusBadRequest)
		return
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = s.capacity
	}
	d := draft.New(req.FromUserID, req.ToUserID, capacity)

	if err := s.store.CreateDraft(r.Context(), &d); err != nil {
		writeError(w, "failed to create draft", http.StatusInternalServerError)
		return
	}
	metrics.OpenDrafts.Inc()

	slog.Info("draft created",
		"id", d.ID,
		"from", d.FromUserID,
		"to", d.ToUserID,
		"capacity", capacity,
	)
	s.broadcast("draft_created", d, "")

	writeJSON(w, http.StatusCreated, s.view(d))
}

// GetDraft handles GET /api/v1/drafts/{draftID}
func (s *Service) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		writeError(w, "draft not found", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, s.view(*d))
}

// DeleteDraft handles DELETE /api/v1/drafts/{draftID}
func (s *Service) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "draftID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitter.InFlight(id) {
		writeError(w, ErrSubmissionInFlight.Error(), http.StatusConflict)
		return
	}
	d, err := s.store.GetDraft(ctx, id)
	if err != nil {
		writeError(w, "draft not found", statusFor(err))
		return
	}
	if err := s.store.DeleteDraft(ctx, id); err != nil {
		writeError(w, "failed to delete draft", http.StatusInternalServerError)
		return
	}
	metrics.OpenDrafts.Dec()

	slog.Info("draft discarded", "id", id)
	s.broadcast("draft_discarded", *d, "")
	w.WriteHeader(http.StatusNoContent)
}

// SetMessage handles PUT /api/v1/drafts/{draftID}/message
func (s *Service) SetMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		return draft.SetMessage(d, req.Message), draft.OutcomeUnchanged, nil
	})
}

// --- Drag and drop ---

// DragStart handles POST /api/v1/drafts/{draftID}/drag
func (s *Service) DragStart(w http.ResponseWriter, r *http.Request) {
	var req DragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var fresh *model.Item // item built from the request
	var ref *itemref.Ref  // item id to prefer from the draft

	switch {
	case req.ItemID != "":
		parsed, err := itemref.Parse(req.ItemID)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ref = parsed
		if ref.Kind == model.KindProduct {
			p, err := s.catalog.Lookup(ctx, ref.ProductID)
			if err != nil {
				writeError(w, err.Error(), statusFor(err))
				return
			}
			it := draft.ProductItem(p)
			fresh = &it
		}
	case req.ProductID != 0:
		p, err := s.catalog.Lookup(ctx, req.ProductID)
		if err != nil {
			writeError(w, err.Error(), statusFor(err))
			return
		}
		it := draft.ProductItem(p)
		fresh = &it
	case req.Amount != nil:
		it, err := draft.CashItem(*req.Amount)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		fresh = &it
	default:
		writeError(w, "one of product_id, item_id or amount is required", http.StatusBadRequest)
		return
	}

	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		item := fresh
		if ref != nil {
			if it, _, ok := draft.Find(d, ref.ID); ok {
				item = &it
			}
		}
		if item == nil {
			return d, draft.OutcomeUnchanged, ErrItemNotInDraft
		}
		if err := checkParty(d, *item); err != nil {
			return d, draft.OutcomeUnchanged, err
		}
		return draft.DragStart(d, *item)
	})
}

// DragOver handles POST /api/v1/drafts/{draftID}/dragover
func (s *Service) DragOver(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		return draft.DragOver(d, req.Slot)
	})
}

// DragCancel handles DELETE /api/v1/drafts/{draftID}/drag
func (s *Service) DragCancel(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		out, outcome := draft.DragCancel(d)
		return out, outcome, nil
	})
}

// Drop handles POST /api/v1/drafts/{draftID}/drop
func (s *Service) Drop(w http.ResponseWriter, r *http.Request) {
	var req SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		return draft.Drop(d, req.Slot)
	})
}

// --- Direct slot operations ---

// PlaceProduct handles POST /api/v1/drafts/{draftID}/slots/{slotID}/products
func (s *Service) PlaceProduct(w http.ResponseWriter, r *http.Request) {
	var req PlaceProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	slotID := model.SlotID(chi.URLParam(r, "slotID"))
	if !draft.ValidSlot(slotID) {
		writeError(w, draft.ErrUnknownSlot.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.catalog.Lookup(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	item := draft.ProductItem(p)

	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		if err := checkParty(d, item); err != nil {
			return d, draft.OutcomeUnchanged, err
		}
		return draft.Place(d, slotID, item)
	})
}

// SetCash handles POST /api/v1/drafts/{draftID}/slots/{slotID}/cash
// Replaces the slot's cash item, if any.
func (s *Service) SetCash(w http.ResponseWriter, r *http.Request) {
	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	slotID := model.SlotID(chi.URLParam(r, "slotID"))
	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		return draft.SetCash(d, slotID, req.Amount)
	})
}

// RemoveItem handles DELETE /api/v1/drafts/{draftID}/slots/{slotID}/items/{itemID}
func (s *Service) RemoveItem(w http.ResponseWriter, r *http.Request) {
	slotID := model.SlotID(chi.URLParam(r, "slotID"))
	itemID := chi.URLParam(r, "itemID")
	if _, err := itemref.Parse(itemID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mutate(w, r, func(d model.Draft) (model.Draft, draft.Outcome, error) {
		return draft.Remove(d, slotID, itemID)
	})
}

// mutate applies op to the stored draft under the service mutex, persists
// the result and writes a PlacementResponse. Capacity and duplicate
// rejections answer 200 with the untouched draft.
func (s *Service) mutate(w http.ResponseWriter, r *http.Request, op func(model.Draft) (model.Draft, draft.Outcome, error)) {
	id := chi.URLParam(r, "draftID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitter.InFlight(id) {
		writeError(w, ErrSubmissionInFlight.Error(), http.StatusConflict)
		return
	}

	cur, err := s.store.GetDraft(ctx, id)
	if err != nil {
		writeError(w, "draft not found", statusFor(err))
		return
	}

	next, outcome, err := op(*cur)
	if err != nil && !outcome.Rejected() {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	if err == nil {
		if err := s.store.SaveDraft(ctx, &next); err != nil {
			writeError(w, "failed to save draft", statusFor(err))
			return
		}
	}
	metrics.PlacementsTotal.WithLabelValues(string(outcome)).Inc()

	if outcome.Rejected() {
		slog.Debug("placement rejected", "draft", id, "outcome", outcome)
	}
	s.broadcast("draft_updated", next, outcome)

	writeJSON(w, http.StatusOK, PlacementResponse{Draft: s.view(next), Outcome: outcome})
}

// --- Submission ---

// Submit handles POST /api/v1/drafts/{draftID}/submit
// Returns 201 with the ledger record. The draft is kept on failure.
func (s *Service) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "draftID")
	ctx := r.Context()

	// Snapshot and mark in flight atomically with respect to mutations.
	s.mu.Lock()
	d, err := s.store.GetDraft(ctx, id)
	if err != nil {
		s.mu.Unlock()
		writeError(w, "draft not found", statusFor(err))
		return
	}
	if err := s.submitter.begin(*d); err != nil {
		s.mu.Unlock()
		writeError(w, err.Error(), statusFor(err))
		return
	}
	s.mu.Unlock()

	sub, err := s.submitter.finish(ctx, *d)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "draft_submitted",
			DraftID:    d.ID,
			FromUserID: d.FromUserID,
			ToUserID:   d.ToUserID,
			TradeID:    sub.TradeID,
		})
	}

	writeJSON(w, http.StatusCreated, sub)
}

// ListSubmissions handles GET /api/v1/submissions/{userID}
func (s *Service) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.GetSubmissionsByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, "failed to load submissions", http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// PurgeExpired deletes drafts idle for longer than ttl. Drafts with a
// submission in flight are kept; the submission decides their fate.
func (s *Service) PurgeExpired(ctx context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// New submissions begin under s.mu, so this set cannot grow while we purge.
	purged, err := s.store.PurgeDrafts(ctx, time.Now().UTC().Add(-ttl), s.submitter.InFlightIDs())
	if err != nil {
		return 0, err
	}
	n := len(purged)
	if n > 0 {
		metrics.OpenDrafts.Sub(float64(n))
		slog.Info("expired drafts purged", "count", n, "ttl", ttl.String())
	}
	return n, nil
}

// --- Catalog ---

// ListOwned handles GET /api/v1/catalog/owned/{userID}?q=&category=
func (s *Service) ListOwned(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListOwnedBy(r.Context(), chi.URLParam(r, "userID"), filterFrom(r))
	writeProducts(w, products, err)
}

// ListAvailable handles GET /api/v1/catalog/available/{userID}?q=&category=
func (s *Service) ListAvailable(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListAvailableFrom(r.Context(), chi.URLParam(r, "userID"), filterFrom(r))
	writeProducts(w, products, err)
}

// ListCategories handles GET /api/v1/catalog/categories
func (s *Service) ListCategories(w http.ResponseWriter, r *http.Request) {
	names, err := s.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func filterFrom(r *http.Request) catalog.Filter {
	q := r.URL.Query()
	return catalog.Filter{Query: q.Get("q"), Category: q.Get("category")}
}

func writeProducts(w http.ResponseWriter, products []model.Product, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), ProductsResponse{Products: []model.Product{}, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

// --- Trade records (backend proxy) ---

// ListTrades handles GET /api/v1/trades?user_id=&sent=
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	sent := false
	if v := r.URL.Query().Get("sent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "sent must be a boolean", http.StatusBadRequest)
			return
		}
		sent = b
	}

	trades, err := s.backend.ListTrades(r.Context(), userID, sent)
	if err != nil {
		writeError(w, err.Error(), proxyStatus(err))
		return
	}
	if trades == nil {
		trades = []model.TradeOffer{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetTrade handles GET /api/v1/trades/{tradeID}?user_id=
func (s *Service) GetTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := strconv.ParseInt(chi.URLParam(r, "tradeID"), 10, 64)
	if err != nil || tradeID <= 0 {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	t, err := s.backend.GetTrade(r.Context(), tradeID, userID)
	if err != nil {
		writeError(w, err.Error(), proxyStatus(err))
		return
	}
	if t == nil {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTradeStatus handles PATCH /api/v1/trades/{tradeID}/status
func (s *Service) UpdateTradeStatus(w http.ResponseWriter, r *http.Request) {
	tradeID, err := strconv.ParseInt(chi.URLParam(r, "tradeID"), 10, 64)
	if err != nil || tradeID <= 0 {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var status string
	switch {
	case strings.EqualFold(req.Status, backend.StatusAccepted):
		status = backend.StatusAccepted
	case strings.EqualFold(req.Status, backend.StatusDeclined):
		status = backend.StatusDeclined
	default:
		writeError(w, backend.ErrInvalidStatus.Error(), http.StatusBadRequest)
		return
	}

	t, err := s.backend.UpdateTradeStatus(r.Context(), tradeID, status)
	if err != nil {
		writeError(w, err.Error(), proxyStatus(err))
		return
	}

	slog.Info("trade status updated", "trade", tradeID, "status", status)
	if t == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- Helpers ---

func (s *Service) broadcast(kind string, d model.Draft, outcome draft.Outcome) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:       kind,
		DraftID:    d.ID,
		FromUserID: d.FromUserID,
		ToUserID:   d.ToUserID,
		Outcome:    string(outcome),
		Balance:    draft.Balance(d.Offered, d.Requested).String(),
	})
}

// checkParty rejects products owned by someone outside the draft.
func checkParty(d model.Draft, it model.Item) error {
	if it.Kind != model.KindProduct {
		return nil
	}
	if it.OwnerID != d.FromUserID && it.OwnerID != d.ToUserID {
		return ErrForeignProduct
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, ErrItemNotInDraft):
		return http.StatusNotFound
	case errors.Is(err, draft.ErrUnknownSlot),
		errors.Is(err, draft.ErrInvalidCash),
		errors.Is(err, draft.ErrInvalidItem),
		errors.Is(err, itemref.ErrInvalidRef),
		errors.Is(err, itemref.ErrInvalidProductID),
		errors.Is(err, ErrForeignProduct):
		return http.StatusBadRequest
	case errors.Is(err, ErrSubmissionInFlight),
		errors.Is(err, ErrDraftIncomplete):
		return http.StatusConflict
	case errors.Is(err, ErrSubmissionFailure),
		errors.Is(err, catalog.ErrFetchFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// proxyStatus maps backend client errors for the pass-through trade endpoints.
func proxyStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	if errors.Is(err, backend.ErrInvalidStatus) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
