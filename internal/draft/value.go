package draft

import (
	"github.com/shopspring/decimal"

	"github.com/swapdesk/swap-desk/internal/model"
)

// SlotValue sums product prices and cash amounts in s.
func SlotValue(s model.Slot) decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Value)
	}
	return total
}

// Balance returns SlotValue(offered) - SlotValue(requested). Positive means
// the offering side gives more value than it asks for.
func Balance(offered, requested model.Slot) decimal.Decimal {
	return SlotValue(offered).Sub(SlotValue(requested))
}

// CashAmount returns the amount of the slot's cash item, or zero.
func CashAmount(s model.Slot) decimal.Decimal {
	for _, it := range s.Items {
		if it.Kind == model.KindCash {
			return it.Value
		}
	}
	return decimal.Zero
}

// ProductIDs returns the product ids in s in slot order.
func ProductIDs(s model.Slot) []int64 {
	ids := make([]int64, 0, len(s.Items))
	for _, it := range s.Items {
		if it.Kind == model.KindProduct {
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
