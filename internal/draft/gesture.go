package draft

import (
	"errors"
	"time"

	"github.com/swapdesk/swap-desk/internal/model"
)

// DragStart records item as the in-flight drag payload. A drag already in
// flight is replaced, never stacked. Slots are not touched.
func DragStart(d model.Draft, item model.Item) (model.Draft, Outcome, error) {
	if err := validateItem(item); err != nil {
		return d, OutcomeUnchanged, err
	}
	out := clone(d)
	out.Dragging = &item
	out.DragOver = ""
	out.UpdatedAt = time.Now().UTC()
	return out, OutcomeDragStarted, nil
}

// DragOver records which slot the pointer is over. It is a display hint;
// placement rules are only checked on Drop.
func DragOver(d model.Draft, slotID model.SlotID) (model.Draft, Outcome, error) {
	if !ValidSlot(slotID) {
		return d, OutcomeUnchanged, ErrUnknownSlot
	}
	out := clone(d)
	out.DragOver = slotID
	return out, OutcomeDragOver, nil
}

// DragCancel clears the in-flight item and the hover hint.
func DragCancel(d model.Draft) (model.Draft, Outcome) {
	if d.Dragging == nil && d.DragOver == "" {
		return d, OutcomeUnchanged
	}
	out := clone(d)
	out.Dragging = nil
	out.DragOver = ""
	out.UpdatedAt = time.Now().UTC()
	return out, OutcomeDragCancelled
}

// Drop completes the gesture onto slotID. Without an in-flight item it is a
// no-op. Otherwise the dragged item goes through Place; capacity and
// duplicate rejections leave the slots untouched and are reported only
// through the Outcome. The in-flight item is cleared either way.
func Drop(d model.Draft, slotID model.SlotID) (model.Draft, Outcome, error) {
	if !ValidSlot(slotID) {
		return d, OutcomeUnchanged, ErrUnknownSlot
	}
	if d.Dragging == nil {
		return d, OutcomeNoDrag, nil
	}

	placed, outcome, err := Place(d, slotID, *d.Dragging)
	if err != nil && !errors.Is(err, ErrSlotFull) && !errors.Is(err, ErrDuplicateItem) {
		return d, outcome, err
	}

	out := clone(placed)
	out.Dragging = nil
	out.DragOver = ""
	out.UpdatedAt = time.Now().UTC()
	return out, outcome, nil
}
