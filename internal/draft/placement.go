package draft

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/swapdesk/swap-desk/internal/model"
)

// Place inserts item into the named slot.
//
// A product already in the target slot is rejected with ErrDuplicateItem.
// A product sitting in the other slot is moved. A cash item replaces any
// cash already in the target slot. If the target is still at capacity
// after those removals the draft is returned unchanged with ErrSlotFull.
func Place(d model.Draft, slotID model.SlotID, item model.Item) (model.Draft, Outcome, error) {
	if !ValidSlot(slotID) {
		return d, OutcomeUnchanged, ErrUnknownSlot
	}
	if err := validateItem(item); err != nil {
		return d, OutcomeUnchanged, err
	}

	if item.Kind == model.KindProduct && containsProduct(*slotRef(&d, slotID), item.ProductID) {
		return d, OutcomeRejectedDuplicate, ErrDuplicateItem
	}

	return MoveOrPlace(d, item, slotID)
}

// MoveOrPlace removes item from every slot of the draft (and, for cash,
// any other cash item in the target slot), then appends it to target if
// capacity allows. On rejection the original draft is returned.
//
// Because removal from all slots happens before insertion, a product can
// never end up in both slots.
func MoveOrPlace(d model.Draft, item model.Item, target model.SlotID) (model.Draft, Outcome, error) {
	if !ValidSlot(target) {
		return d, OutcomeUnchanged, ErrUnknownSlot
	}
	if err := validateItem(item); err != nil {
		return d, OutcomeUnchanged, err
	}

	_, from, wasPlaced := locate(d, item)

	out := clone(d)
	replacedCash := false
	for _, s := range []*model.Slot{&out.Offered, &out.Requested} {
		kept := s.Items[:0]
		for _, it := range s.Items {
			if sameItem(it, item) {
				continue
			}
			if item.Kind == model.KindCash && s.ID == target && it.Kind == model.KindCash {
				replacedCash = true
				continue
			}
			kept = append(kept, it)
		}
		s.Items = kept
	}

	dst := slotRef(&out, target)
	if len(dst.Items) >= dst.Capacity {
		return d, OutcomeRejectedFull, ErrSlotFull
	}
	dst.Items = append(dst.Items, item)
	out.UpdatedAt = time.Now().UTC()

	switch {
	case replacedCash:
		return out, OutcomeCashReplaced, nil
	case wasPlaced && from != target:
		return out, OutcomeMoved, nil
	case wasPlaced:
		return out, OutcomeUnchanged, nil
	}
	return out, OutcomePlaced, nil
}

// Remove drops the item with itemID from the named slot. Removing an item
// that is not there is a no-op, so repeated calls yield the same draft.
func Remove(d model.Draft, slotID model.SlotID, itemID string) (model.Draft, Outcome, error) {
	if !ValidSlot(slotID) {
		return d, OutcomeUnchanged, ErrUnknownSlot
	}

	idx := -1
	for i, it := range slotRef(&d, slotID).Items {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return d, OutcomeUnchanged, nil
	}

	out := clone(d)
	dst := slotRef(&out, slotID)
	dst.Items = append(dst.Items[:idx], dst.Items[idx+1:]...)
	out.UpdatedAt = time.Now().UTC()
	return out, OutcomeRemoved, nil
}

// SetCash places a fresh cash item of the given amount into the slot,
// overwriting the slot's existing cash item if it has one.
func SetCash(d model.Draft, slotID model.SlotID, amount decimal.Decimal) (model.Draft, Outcome, error) {
	if !ValidSlot(slotID) {
		return d, OutcomeUnchanged, ErrUnknownSlot
	}
	item, err := CashItem(amount)
	if err != nil {
		return d, OutcomeUnchanged, err
	}
	return Place(d, slotID, item)
}

// locate finds where item currently sits in d. Products are matched by
// product id, cash by item id.
func locate(d model.Draft, item model.Item) (model.Item, model.SlotID, bool) {
	for _, s := range []model.Slot{d.Offered, d.Requested} {
		for _, it := range s.Items {
			if sameItem(it, item) {
				return it, s.ID, true
			}
		}
	}
	return model.Item{}, "", false
}

func sameItem(a, b model.Item) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == model.KindProduct {
		return a.ProductID == b.ProductID
	}
	return a.ID == b.ID
}

func containsProduct(s model.Slot, productID int64) bool {
	for _, it := range s.Items {
		if it.Kind == model.KindProduct && it.ProductID == productID {
			return true
		}
	}
	return false
}

func validateItem(it model.Item) error {
	switch it.Kind {
	case model.KindProduct:
		if it.ProductID <= 0 || it.ID == "" || it.Value.IsNegative() {
			return ErrInvalidItem
		}
	case model.KindCash:
		if it.ID == "" {
			return ErrInvalidItem
		}
		if !it.Value.IsPositive() {
			return ErrInvalidCash
		}
	default:
		return ErrInvalidItem
	}
	return nil
}
