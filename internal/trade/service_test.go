package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/swapdesk/swap-desk/internal/backend"
	"github.com/swapdesk/swap-desk/internal/catalog"
	"github.com/swapdesk/swap-desk/internal/draft"
	"github.com/swapdesk/swap-desk/internal/model"
	"github.com/swapdesk/swap-desk/internal/store"
	"github.com/swapdesk/swap-desk/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Products A (50) and B (100) belong to alice, C (200) to bob, D to carol.
const productsJSON = `[
	{"id":1,"name":"Bike","price":50,"createdByUserId":"alice","categoryDto":{"id":1,"name":"Sports"}},
	{"id":2,"name":"Guitar","price":100,"createdByUserId":"alice","categoryDto":{"id":2,"name":"Music"}},
	{"id":3,"name":"Camera","price":200,"createdByUserId":"bob","categoryDto":{"id":3,"name":"Electronics"}},
	{"id":4,"name":"Lamp","price":30,"createdByUserId":"carol","categoryDto":{"id":4,"name":"Home"}}
]`

type testEnv struct {
	router chi.Router
	svc    *trade.Service
	store  *store.MemoryStore

	mu          sync.Mutex
	tradeBodies [][]byte

	// tradeHandler answers POST /trade after the body has been recorded.
	tradeHandler http.HandlerFunc
	failCatalog  bool
}

// newTestEnv wires a Service to an in-memory store and a fake marketplace
// backend served by httptest.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewMemoryStore(),
		tradeHandler: func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, `{"id":77,"status":"Pending"}`)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, _ *http.Request) {
		if env.failCatalog {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, productsJSON)
	})
	mux.HandleFunc("/categories", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `[{"id":1,"name":"Sports"}]`)
	})
	mux.HandleFunc("/trade", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			env.mu.Lock()
			env.tradeBodies = append(env.tradeBodies, body)
			env.mu.Unlock()
			env.tradeHandler(w, r)
		case http.MethodGet:
			io.WriteString(w, `[{"id":77,"message":"hello"}]`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	// Trade 77 exists; the backend answers any other id with an empty body.
	mux.HandleFunc("/trade/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/trade/77" {
			io.WriteString(w, `{"id":77,"message":"hello"}`)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 2*time.Second)
	registry := catalog.NewRegistry(client, nil, 0)
	svc := trade.NewService(env.store, registry, client, nil, 0)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	env.router = r
	env.svc = svc
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createDraft(t *testing.T, capacity int) trade.DraftView {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/drafts", trade.CreateDraftRequest{
		FromUserID: "alice",
		ToUserID:   "bob",
		Capacity:   capacity,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create draft: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var v trade.DraftView
	json.Unmarshal(w.Body.Bytes(), &v)
	return v
}

func (e *testEnv) place(t *testing.T, draftID string, slot model.SlotID, productID int64) trade.PlacementResponse {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/drafts/"+draftID+"/slots/"+string(slot)+"/products",
		trade.PlaceProductRequest{ProductID: productID})
	return placement(t, w)
}

func (e *testEnv) cash(t *testing.T, draftID string, slot model.SlotID, amount float64) trade.PlacementResponse {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/drafts/"+draftID+"/slots/"+string(slot)+"/cash",
		map[string]any{"amount": amount})
	return placement(t, w)
}

func placement(t *testing.T, w *httptest.ResponseRecorder) trade.PlacementResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp trade.PlacementResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode placement: %v", err)
	}
	return resp
}

func productIDs(s model.Slot) []int64 {
	var ids []int64
	for _, it := range s.Items {
		if it.Kind == model.KindProduct {
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// --- Draft lifecycle ---

func TestCreateDraft_Defaults(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	if v.ID == "" {
		t.Fatal("expected draft id")
	}
	if v.Offered.Capacity != draft.DefaultCapacity || v.Requested.Capacity != draft.DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d/%d",
			draft.DefaultCapacity, v.Offered.Capacity, v.Requested.Capacity)
	}
	if len(v.Offered.Items) != 0 || len(v.Requested.Items) != 0 {
		t.Error("new draft should have empty slots")
	}
	if v.CanSubmit {
		t.Error("empty draft must not be submittable")
	}
	if !v.Balance.IsZero() {
		t.Errorf("empty draft balance should be 0, got %s", v.Balance)
	}
}

func TestCreateDraft_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  trade.CreateDraftRequest
	}{
		{"missing recipient", trade.CreateDraftRequest{FromUserID: "alice"}},
		{"same user", trade.CreateDraftRequest{FromUserID: "alice", ToUserID: "alice"}},
		{"negative capacity", trade.CreateDraftRequest{FromUserID: "alice", ToUserID: "bob", Capacity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/drafts", tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestDeleteDraft(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	w := env.do(t, "DELETE", "/api/v1/drafts/"+v.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = env.do(t, "GET", "/api/v1/drafts/"+v.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestMutate_UnknownDraft(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/drafts/nope/drop", trade.SlotRequest{Slot: model.SlotOffered})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSetMessage(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	resp := placement(t, env.do(t, "PUT", "/api/v1/drafts/"+v.ID+"/message",
		trade.MessageRequest{Message: "fair swap?"}))
	if resp.Draft.Message != "fair swap?" {
		t.Errorf("expected message to be set, got %q", resp.Draft.Message)
	}
}

// --- Values, balance and payload ---

func TestEndToEnd_ValuesBalanceAndPayload(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	env.place(t, v.ID, model.SlotOffered, 1)
	env.place(t, v.ID, model.SlotOffered, 2)
	resp := env.place(t, v.ID, model.SlotRequested, 3)

	if !resp.Draft.OfferedValue.Equal(d(150)) {
		t.Errorf("offered value: expected 150, got %s", resp.Draft.OfferedValue)
	}
	if !resp.Draft.RequestedValue.Equal(d(200)) {
		t.Errorf("requested value: expected 200, got %s", resp.Draft.RequestedValue)
	}
	if !resp.Draft.Balance.Equal(d(-50)) {
		t.Errorf("balance: expected -50, got %s", resp.Draft.Balance)
	}

	resp = env.cash(t, v.ID, model.SlotOffered, 60)
	if !resp.Draft.OfferedValue.Equal(d(210)) {
		t.Errorf("offered value with cash: expected 210, got %s", resp.Draft.OfferedValue)
	}
	if !resp.Draft.Balance.Equal(d(10)) {
		t.Errorf("balance with cash: expected 10, got %s", resp.Draft.Balance)
	}
	if !resp.Draft.CanSubmit {
		t.Fatal("draft with items on both sides should be submittable")
	}

	w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/submit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var sub model.Submission
	json.Unmarshal(w.Body.Bytes(), &sub)
	if sub.TradeID == nil || *sub.TradeID != 77 {
		t.Errorf("expected trade id 77, got %v", sub.TradeID)
	}

	env.mu.Lock()
	bodies := env.tradeBodies
	env.mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected 1 backend call, got %d", len(bodies))
	}

	var payload struct {
		DTO struct {
			FromUserID          string  `json:"fromUserId"`
			ToUserID            string  `json:"toUserId"`
			OfferedProductIDs   []int64 `json:"offeredProductIds"`
			RequestedProductIDs []int64 `json:"requestedProductIds"`
			FromUserCash        float64 `json:"fromUserCash"`
			ToUserCash          float64 `json:"toUserCash"`
		} `json:"createTradeOfferDto"`
	}
	if err := json.Unmarshal(bodies[0], &payload); err != nil {
		t.Fatalf("decode payload: %v (%s)", err, bodies[0])
	}
	dto := payload.DTO
	if dto.FromUserID != "alice" || dto.ToUserID != "bob" {
		t.Errorf("unexpected parties %s -> %s", dto.FromUserID, dto.ToUserID)
	}
	if len(dto.OfferedProductIDs) != 2 || dto.OfferedProductIDs[0] != 1 || dto.OfferedProductIDs[1] != 2 {
		t.Errorf("offered ids: expected [1 2], got %v", dto.OfferedProductIDs)
	}
	if len(dto.RequestedProductIDs) != 1 || dto.RequestedProductIDs[0] != 3 {
		t.Errorf("requested ids: expected [3], got %v", dto.RequestedProductIDs)
	}
	if dto.FromUserCash != 60 || dto.ToUserCash != 0 {
		t.Errorf("cash: expected 60/0, got %v/%v", dto.FromUserCash, dto.ToUserCash)
	}

	// Submitted drafts are gone; the ledger keeps the record.
	if w := env.do(t, "GET", "/api/v1/drafts/"+v.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected submitted draft to be deleted, got %d", w.Code)
	}
	w = env.do(t, "GET", "/api/v1/submissions/alice", nil)
	var subs []model.Submission
	json.Unmarshal(w.Body.Bytes(), &subs)
	if len(subs) != 1 || subs[0].DraftID != v.ID {
		t.Errorf("expected one ledger entry for draft %s, got %+v", v.ID, subs)
	}
}

// --- Placement rules over HTTP ---

func TestPlaceProduct_MovesAcrossSlots(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	env.place(t, v.ID, model.SlotOffered, 1)
	resp := env.place(t, v.ID, model.SlotRequested, 1)

	if resp.Outcome != draft.OutcomeMoved {
		t.Errorf("expected outcome moved, got %s", resp.Outcome)
	}
	if len(resp.Draft.Offered.Items) != 0 {
		t.Error("product should have left the offered slot")
	}
	if got := productIDs(resp.Draft.Requested); len(got) != 1 || got[0] != 1 {
		t.Errorf("expected requested [1], got %v", got)
	}
}

func TestPlaceProduct_DuplicateIsSilent(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	env.place(t, v.ID, model.SlotOffered, 1)
	resp := env.place(t, v.ID, model.SlotOffered, 1)

	if resp.Outcome != draft.OutcomeRejectedDuplicate {
		t.Errorf("expected rejected_duplicate, got %s", resp.Outcome)
	}
	if len(resp.Draft.Offered.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(resp.Draft.Offered.Items))
	}
}

func TestPlaceProduct_Errors(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	tests := []struct {
		name      string
		slot      string
		productID int64
		want      int
	}{
		{"unknown slot", "middle", 1, http.StatusBadRequest},
		{"unknown product", "offered", 99, http.StatusNotFound},
		{"foreign product", "offered", 4, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/slots/"+tt.slot+"/products",
				trade.PlaceProductRequest{ProductID: tt.productID})
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestSetCash_Overwrites(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	env.cash(t, v.ID, model.SlotOffered, 50)
	resp := env.cash(t, v.ID, model.SlotOffered, 80)

	if resp.Outcome != draft.OutcomeCashReplaced {
		t.Errorf("expected cash_replaced, got %s", resp.Outcome)
	}
	if len(resp.Draft.Offered.Items) != 1 {
		t.Fatalf("expected a single cash item, got %d", len(resp.Draft.Offered.Items))
	}
	if !resp.Draft.Offered.Items[0].Value.Equal(d(80)) {
		t.Errorf("expected cash 80, got %s", resp.Draft.Offered.Items[0].Value)
	}
}

func TestSetCash_NonPositiveRejected(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	for _, amount := range []float64{0, -5} {
		w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/slots/offered/cash", map[string]any{"amount": amount})
		if w.Code != http.StatusBadRequest {
			t.Errorf("amount %v: expected 400, got %d", amount, w.Code)
		}
	}
}

func TestRemoveItem_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)
	env.place(t, v.ID, model.SlotOffered, 1)

	path := "/api/v1/drafts/" + v.ID + "/slots/offered/items/product-1"
	first := placement(t, env.do(t, "DELETE", path, nil))
	second := placement(t, env.do(t, "DELETE", path, nil))

	if first.Outcome != draft.OutcomeRemoved {
		t.Errorf("expected removed, got %s", first.Outcome)
	}
	if second.Outcome != draft.OutcomeUnchanged {
		t.Errorf("expected unchanged on second remove, got %s", second.Outcome)
	}
	if len(second.Draft.Offered.Items) != 0 {
		t.Error("offered slot should be empty")
	}

	w := env.do(t, "DELETE", "/api/v1/drafts/"+v.ID+"/slots/offered/items/bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed item id: expected 400, got %d", w.Code)
	}
}

// --- Drag and drop ---

func TestDrop_WithoutDrag(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	resp := placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drop",
		trade.SlotRequest{Slot: model.SlotOffered}))
	if resp.Outcome != draft.OutcomeNoDrag {
		t.Errorf("expected no_drag, got %s", resp.Outcome)
	}
}

func TestDragAndDrop_Product(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	resp := placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drag",
		trade.DragRequest{ProductID: 3}))
	if resp.Outcome != draft.OutcomeDragStarted || resp.Draft.Dragging == nil {
		t.Fatalf("expected drag to start, got %s", resp.Outcome)
	}

	resp = placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/dragover",
		trade.SlotRequest{Slot: model.SlotRequested}))
	if resp.Draft.DragOver != model.SlotRequested {
		t.Errorf("expected hover hint on requested, got %q", resp.Draft.DragOver)
	}
	if len(resp.Draft.Requested.Items) != 0 {
		t.Error("dragover must not place anything")
	}

	resp = placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drop",
		trade.SlotRequest{Slot: model.SlotRequested}))
	if resp.Outcome != draft.OutcomePlaced {
		t.Errorf("expected placed, got %s", resp.Outcome)
	}
	if resp.Draft.Dragging != nil || resp.Draft.DragOver != "" {
		t.Error("drop should clear the drag state")
	}
	if got := productIDs(resp.Draft.Requested); len(got) != 1 || got[0] != 3 {
		t.Errorf("expected requested [3], got %v", got)
	}
}

func TestDrop_OnFullSlotIsSilent(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 1)
	env.place(t, v.ID, model.SlotOffered, 1)

	placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drag", trade.DragRequest{ProductID: 2}))
	resp := placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drop",
		trade.SlotRequest{Slot: model.SlotOffered}))

	if resp.Outcome != draft.OutcomeRejectedFull {
		t.Errorf("expected rejected_full, got %s", resp.Outcome)
	}
	if got := productIDs(resp.Draft.Offered); len(got) != 1 || got[0] != 1 {
		t.Errorf("offered slot should be unchanged, got %v", got)
	}
	if resp.Draft.Dragging != nil {
		t.Error("rejected drop should still clear the drag")
	}
}

func TestDragStart_ExistingCashItem(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)
	resp := env.cash(t, v.ID, model.SlotOffered, 25)
	cashID := resp.Draft.Offered.Items[0].ID

	placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drag", trade.DragRequest{ItemID: cashID}))
	resp = placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drop",
		trade.SlotRequest{Slot: model.SlotRequested}))

	if resp.Outcome != draft.OutcomeMoved {
		t.Errorf("expected moved, got %s", resp.Outcome)
	}
	if len(resp.Draft.Offered.Items) != 0 || len(resp.Draft.Requested.Items) != 1 {
		t.Errorf("cash should have moved to requested, got %d/%d",
			len(resp.Draft.Offered.Items), len(resp.Draft.Requested.Items))
	}

	w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drag", trade.DragRequest{ItemID: "cash-missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown cash item: expected 404, got %d", w.Code)
	}
}

func TestDragCancel(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	amount := d(10)
	placement(t, env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/drag", trade.DragRequest{Amount: &amount}))
	resp := placement(t, env.do(t, "DELETE", "/api/v1/drafts/"+v.ID+"/drag", nil))

	if resp.Outcome != draft.OutcomeDragCancelled {
		t.Errorf("expected drag_cancelled, got %s", resp.Outcome)
	}
	if resp.Draft.Dragging != nil {
		t.Error("cancel should clear the in-flight item")
	}
}

// --- Submission ---

func TestSubmit_Incomplete(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)
	env.place(t, v.ID, model.SlotOffered, 1)

	w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/submit", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.tradeBodies) != 0 {
		t.Error("incomplete draft must not reach the backend")
	}
}

func TestSubmit_BackendFailureKeepsDraft(t *testing.T) {
	env := newTestEnv(t)
	env.tradeHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "product 3 is no longer available")
	}
	v := env.createDraft(t, 0)
	env.place(t, v.ID, model.SlotOffered, 1)
	env.place(t, v.ID, model.SlotRequested, 3)

	w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/submit", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, "GET", "/api/v1/drafts/"+v.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("draft should survive a failed submission, got %d", w.Code)
	}
	var view trade.DraftView
	json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Offered.Items) != 1 || len(view.Requested.Items) != 1 {
		t.Error("draft contents should be untouched")
	}
	if view.Submitting || !view.CanSubmit {
		t.Error("draft should be submittable again after a failure")
	}

	w = env.do(t, "GET", "/api/v1/submissions/alice", nil)
	if w.Body.String() != "[]\n" {
		t.Errorf("ledger should be empty, got %s", w.Body.String())
	}
}

func TestSubmit_InFlightGuard(t *testing.T) {
	env := newTestEnv(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()

	env.tradeHandler = func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		io.WriteString(w, `{"id":5}`)
	}

	v := env.createDraft(t, 0)
	env.place(t, v.ID, model.SlotOffered, 1)
	env.place(t, v.ID, model.SlotRequested, 3)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/submit", nil)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the backend")
	}

	if w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/submit", nil); w.Code != http.StatusConflict {
		t.Errorf("second submit: expected 409, got %d", w.Code)
	}
	if w := env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/slots/offered/cash", map[string]any{"amount": 5}); w.Code != http.StatusConflict {
		t.Errorf("mutation during submit: expected 409, got %d", w.Code)
	}
	if w := env.do(t, "DELETE", "/api/v1/drafts/"+v.ID, nil); w.Code != http.StatusConflict {
		t.Errorf("delete during submit: expected 409, got %d", w.Code)
	}

	w := env.do(t, "GET", "/api/v1/drafts/"+v.ID, nil)
	var view trade.DraftView
	json.Unmarshal(w.Body.Bytes(), &view)
	if !view.Submitting || view.CanSubmit {
		t.Error("view should report the submission in flight")
	}

	unblock()
	first := <-done
	if first.Code != http.StatusCreated {
		t.Fatalf("first submit: expected 201, got %d: %s", first.Code, first.Body.String())
	}
	if len(env.tradeBodies) != 1 {
		t.Errorf("expected exactly one backend call, got %d", len(env.tradeBodies))
	}
}

func TestPurgeExpired_RemovesIdleDrafts(t *testing.T) {
	env := newTestEnv(t)
	v := env.createDraft(t, 0)

	// A negative ttl puts the cutoff in the future, so every draft is idle.
	n, err := env.svc.PurgeExpired(context.Background(), -time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged draft, got %d", n)
	}
	if w := env.do(t, "GET", "/api/v1/drafts/"+v.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("purged draft: expected 404, got %d", w.Code)
	}
}

func TestPurgeExpired_SkipsInFlightDraft(t *testing.T) {
	env := newTestEnv(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()

	env.tradeHandler = func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusInternalServerError)
	}

	v := env.createDraft(t, 0)
	env.place(t, v.ID, model.SlotOffered, 1)
	env.place(t, v.ID, model.SlotRequested, 3)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.do(t, "POST", "/api/v1/drafts/"+v.ID+"/submit", nil)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never reached the backend")
	}

	n, err := env.svc.PurgeExpired(context.Background(), -time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 0 {
		t.Errorf("in-flight draft must not be purged, got %d purged", n)
	}

	unblock()
	if w := <-done; w.Code != http.StatusBadGateway {
		t.Fatalf("submit: expected 502, got %d: %s", w.Code, w.Body.String())
	}

	w := env.do(t, "GET", "/api/v1/drafts/"+v.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("draft should survive a failed submission that overlapped a purge, got %d", w.Code)
	}
	var view trade.DraftView
	json.Unmarshal(w.Body.Bytes(), &view)
	if !view.CanSubmit {
		t.Error("draft should be submittable again")
	}
}

// --- Catalog and trade proxy ---

func TestCatalog_Listings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/v1/catalog/owned/alice?q=gui", nil)
	var resp trade.ProductsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Products) != 1 || resp.Products[0].ID != 2 {
		t.Errorf("expected [Guitar], got %d %+v", w.Code, resp.Products)
	}

	w = env.do(t, "GET", "/api/v1/catalog/available/bob?category=electronics", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Products) != 1 || resp.Products[0].ID != 3 {
		t.Errorf("expected [Camera], got %+v", resp.Products)
	}
	if len(resp.Products[0].Images) != 1 || resp.Products[0].Images[0] != catalog.PlaceholderImage {
		t.Error("expected placeholder image")
	}

	w = env.do(t, "GET", "/api/v1/catalog/categories", nil)
	var names []string
	json.Unmarshal(w.Body.Bytes(), &names)
	if len(names) == 0 || names[0] != catalog.AllCategories {
		t.Errorf("expected categories to start with %q, got %v", catalog.AllCategories, names)
	}
}

func TestCatalog_FetchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.failCatalog = true

	w := env.do(t, "GET", "/api/v1/catalog/owned/alice", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var resp trade.ProductsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Products == nil || len(resp.Products) != 0 || resp.Error == "" {
		t.Errorf("expected empty list with error, got %+v", resp)
	}
}

func TestTrades_Proxy(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/v1/trades?user_id=alice&sent=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var trades []model.TradeOffer
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 1 || trades[0].ID != 77 {
		t.Errorf("unexpected trades %+v", trades)
	}

	if w := env.do(t, "GET", "/api/v1/trades", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing user_id: expected 400, got %d", w.Code)
	}
	if w := env.do(t, "GET", "/api/v1/trades?user_id=alice&sent=maybe", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sent flag: expected 400, got %d", w.Code)
	}
	if w := env.do(t, "PATCH", "/api/v1/trades/77/status", trade.StatusRequest{Status: "completed"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: expected 400, got %d", w.Code)
	}
	if w := env.do(t, "PATCH", "/api/v1/trades/abc/status", trade.StatusRequest{Status: "accepted"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid trade id: expected 400, got %d", w.Code)
	}
}

func TestGetTrade_MissingIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/api/v1/trades/77?user_id=alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got model.TradeOffer
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.ID != 77 {
		t.Errorf("expected trade 77, got %+v", got)
	}

	if w := env.do(t, "GET", "/api/v1/trades/78?user_id=alice", nil); w.Code != http.StatusNotFound {
		t.Errorf("empty backend body: expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
