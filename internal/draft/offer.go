package draft

import (
	"github.com/swapdesk/swap-desk/internal/model"
)

// BuildOffer converts a complete draft into the backend's trade-creation
// payload. Cash fields are zero when the slot carries no cash item.
func BuildOffer(d model.Draft) (model.CreateTradeOfferDTO, error) {
	if !Complete(d) {
		return model.CreateTradeOfferDTO{}, ErrIncomplete
	}
	return model.CreateTradeOfferDTO{
		FromUserID:          d.FromUserID,
		ToUserID:            d.ToUserID,
		OfferedProductIDs:   ProductIDs(d.Offered),
		RequestedProductIDs: ProductIDs(d.Requested),
		Message:             d.Message,
		FromUserCash:        CashAmount(d.Offered),
		ToUserCash:          CashAmount(d.Requested),
	}, nil
}
