// Package draft implements the trade-offer builder: two capacity-bounded
// slots ("offered" and "requested"), placement rules over them, the
// drag-and-drop gesture state, and value/balance computation.
//
// Every operation takes a model.Draft by value and returns a new one. The
// input is never mutated, so a rejected operation simply hands back the
// original draft and callers never observe a half-applied change.
//
// Invariants kept by every operation:
//   - len(slot.Items) <= slot.Capacity
//   - a product id appears in at most one slot of the draft
//   - each slot holds at most one cash item
package draft

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/swapdesk/swap-desk/internal/itemref"
	"github.com/swapdesk/swap-desk/internal/model"
)

// DefaultCapacity is the number of items each slot holds unless configured.
const DefaultCapacity = 3

var (
	// ErrSlotFull is returned when placing into a slot already at capacity.
	ErrSlotFull = errors.New("draft: slot is full")

	// ErrDuplicateItem is returned when a product is already in the target slot.
	ErrDuplicateItem = errors.New("draft: product already in slot")

	// ErrUnknownSlot is returned for slot ids other than offered/requested.
	ErrUnknownSlot = errors.New("draft: unknown slot")

	// ErrInvalidCash is returned for cash amounts that are not positive.
	ErrInvalidCash = errors.New("draft: cash amount must be positive")

	// ErrInvalidItem is returned for items that fail basic validation.
	ErrInvalidItem = errors.New("draft: invalid item")

	// ErrIncomplete is returned when a draft without items on both sides is
	// submitted.
	ErrIncomplete = errors.New("draft: both slots need at least one item")
)

// Outcome reports what a placement operation did. Rejections are not
// surfaced as errors to the user, but callers can tell them apart here.
type Outcome string

const (
	OutcomePlaced            Outcome = "placed"
	OutcomeMoved             Outcome = "moved"
	OutcomeCashReplaced      Outcome = "cash_replaced"
	OutcomeRemoved           Outcome = "removed"
	OutcomeUnchanged         Outcome = "unchanged"
	OutcomeRejectedFull      Outcome = "rejected_full"
	OutcomeRejectedDuplicate Outcome = "rejected_duplicate"
	OutcomeNoDrag            Outcome = "no_drag"
	OutcomeDragStarted       Outcome = "drag_started"
	OutcomeDragOver          Outcome = "drag_over"
	OutcomeDragCancelled     Outcome = "drag_cancelled"
)

// Rejected reports whether the outcome left the slots untouched because a
// rule refused the placement.
func (o Outcome) Rejected() bool {
	return o == OutcomeRejectedFull || o == OutcomeRejectedDuplicate
}

// New creates an empty draft between two users. capacity <= 0 selects
// DefaultCapacity.
func New(fromUserID, toUserID string, capacity int) model.Draft {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	now := time.Now().UTC()
	return model.Draft{
		ID:         uuid.New().String(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Offered:    model.Slot{ID: model.SlotOffered, Capacity: capacity, Items: []model.Item{}},
		Requested:  model.Slot{ID: model.SlotRequested, Capacity: capacity, Items: []model.Item{}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ProductItem builds a slot item for a backend product.
func ProductItem(p model.Product) model.Item {
	return model.Item{
		ID:        itemref.Product(p.ID),
		Kind:      model.KindProduct,
		ProductID: p.ID,
		OwnerID:   p.CreatedByUserID,
		Name:      p.Name,
		Value:     p.Price,
	}
}

// CashItem builds a cash item with a fresh id.
func CashItem(amount decimal.Decimal) (model.Item, error) {
	if !amount.IsPositive() {
		return model.Item{}, ErrInvalidCash
	}
	return model.Item{
		ID:    itemref.NewCash(),
		Kind:  model.KindCash,
		Name:  "Cash",
		Value: amount,
	}, nil
}

// ValidSlot reports whether id names one of the two draft slots.
func ValidSlot(id model.SlotID) bool {
	return id == model.SlotOffered || id == model.SlotRequested
}

// Slot returns a copy of the named slot.
func Slot(d model.Draft, id model.SlotID) (model.Slot, error) {
	switch id {
	case model.SlotOffered:
		return cloneSlot(d.Offered), nil
	case model.SlotRequested:
		return cloneSlot(d.Requested), nil
	}
	return model.Slot{}, ErrUnknownSlot
}

// Find returns the item with the given id and the slot holding it.
func Find(d model.Draft, itemID string) (model.Item, model.SlotID, bool) {
	for _, s := range []model.Slot{d.Offered, d.Requested} {
		for _, it := range s.Items {
			if it.ID == itemID {
				return it, s.ID, true
			}
		}
	}
	return model.Item{}, "", false
}

// SetMessage returns a copy of d with the free-text message replaced.
func SetMessage(d model.Draft, message string) model.Draft {
	out := clone(d)
	out.Message = message
	out.UpdatedAt = time.Now().UTC()
	return out
}

// Complete reports whether both slots hold at least one item.
func Complete(d model.Draft) bool {
	return len(d.Offered.Items) > 0 && len(d.Requested.Items) > 0
}

func clone(d model.Draft) model.Draft {
	out := d
	out.Offered = cloneSlot(d.Offered)
	out.Requested = cloneSlot(d.Requested)
	if d.Dragging != nil {
		it := *d.Dragging
		out.Dragging = &it
	}
	return out
}

func cloneSlot(s model.Slot) model.Slot {
	items := make([]model.Item, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

// slotRef returns a pointer to the named slot inside d.
func slotRef(d *model.Draft, id model.SlotID) *model.Slot {
	switch id {
	case model.SlotOffered:
		return &d.Offered
	case model.SlotRequested:
		return &d.Requested
	}
	return nil
}
