// Package model defines the core domain types shared across swap-desk.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SlotID names one side of a trade draft.
type SlotID string

const (
	SlotOffered   SlotID = "offered"
	SlotRequested SlotID = "requested"
)

// ItemKind distinguishes product items from cash items.
type ItemKind string

const (
	KindProduct ItemKind = "product"
	KindCash    ItemKind = "cash"
)

// Product is a marketplace listing as served by the backend's /products
// endpoint. Field names follow the backend's wire format.
type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	CategoryID      int64           `json:"categoryId"`
	Location        string          `json:"location"`
	Category        CategoryRef     `json:"categoryDto"`
	CreatedByUserID string          `json:"createdByUserId"`
	Attributes      []Attribute     `json:"attributes"`
	Images          []string        `json:"images"`
	ModelURL        string          `json:"modelUrl,omitempty"`
}

// CategoryRef is the category summary embedded in a product.
type CategoryRef struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	ParentCategoryID   int64  `json:"parentCategoryId"`
	ParentCategoryName string `json:"parentCategoryName"`
}

// Category is a row of the backend's /categories endpoint.
type Category struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	ParentCategoryID   *int64  `json:"parentCategoryId"`
	ParentCategoryName *string `json:"parentCategoryName"`
}

// Attribute is a free-form product attribute.
type Attribute struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	DataType int    `json:"dataType"`
}

// Item is a placeable unit in a slot: either a product reference or a
// cash amount. Value holds the product price or the cash amount.
type Item struct {
	ID        string          `json:"id"`
	Kind      ItemKind        `json:"kind"`
	ProductID int64           `json:"product_id,omitempty"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Value     decimal.Decimal `json:"value"`
}

// Slot is a capacity-bounded, ordered container of items.
type Slot struct {
	ID       SlotID `json:"id"`
	Capacity int    `json:"capacity"`
	Items    []Item `json:"items"`
}

// Draft is the unsaved state of a trade offer being composed.
// Drafts are treated as values: operations in package draft return a new
// Draft and never mutate their input.
type Draft struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Message    string    `json:"message"`
	Offered    Slot      `json:"offered"`
	Requested  Slot      `json:"requested"`
	Dragging   *Item     `json:"dragging,omitempty"`  // in-flight drag payload
	DragOver   SlotID    `json:"drag_over,omitempty"` // highlight hint only
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateTradeOfferDTO is the body the backend expects under
// "createTradeOfferDto" on POST /trade.
type CreateTradeOfferDTO struct {
	FromUserID          string          `json:"fromUserId"`
	ToUserID            string          `json:"toUserId"`
	OfferedProductIDs   []int64         `json:"offeredProductIds"`
	RequestedProductIDs []int64         `json:"requestedProductIds"`
	Message             string          `json:"message"`
	FromUserCash        decimal.Decimal `json:"fromUserCash"`
	ToUserCash          decimal.Decimal `json:"toUserCash"`
}

// MarshalJSON writes the cash fields as JSON numbers; the backend rejects
// quoted amounts.
func (d CreateTradeOfferDTO) MarshalJSON() ([]byte, error) {
	type plain CreateTradeOfferDTO
	return json.Marshal(struct {
		plain
		FromUserCash json.Number `json:"fromUserCash"`
		ToUserCash   json.Number `json:"toUserCash"`
	}{
		plain:        plain(d),
		FromUserCash: json.Number(d.FromUserCash.String()),
		ToUserCash:   json.Number(d.ToUserCash.String()),
	})
}

// TradeUser is the user summary the backend embeds in trade records.
type TradeUser struct {
	ID          string          `json:"id"`
	UserName    string          `json:"userName"`
	Email       string          `json:"email"`
	Rating      decimal.Decimal `json:"rating"`
	ReviewCount int             `json:"reviewCount"`
	IsOnline    bool            `json:"isOnline"`
}

// TradeOffer is a trade record returned by the backend.
type TradeOffer struct {
	ID                int64           `json:"id"`
	FromUser          TradeUser       `json:"fromUser"`
	ToUser            TradeUser       `json:"toUser"`
	OfferedProducts   []Product       `json:"offeredProducts"`
	RequestedProducts []Product       `json:"requestedProducts"`
	Message           string          `json:"message"`
	FromUserCash      decimal.Decimal `json:"fromUserCash"`
	ToUserCash        decimal.Decimal `json:"toUserCash"`
	Status            *string         `json:"status"` // Pending, Accepted, Declined, Completed
	CreatedAt         string          `json:"createdAt"`
}

// Submission is an immutable record of a draft successfully handed to the
// backend. Once created, these are never modified or deleted.
type Submission struct {
	ID                  string          `json:"id" db:"id"`
	DraftID             string          `json:"draft_id" db:"draft_id"`
	FromUserID          string          `json:"from_user_id" db:"from_user_id"`
	ToUserID            string          `json:"to_user_id" db:"to_user_id"`
	OfferedProductIDs   []int64         `json:"offered_product_ids" db:"offered_product_ids"`
	RequestedProductIDs []int64         `json:"requested_product_ids" db:"requested_product_ids"`
	FromUserCash        decimal.Decimal `json:"from_user_cash" db:"from_user_cash"`
	ToUserCash          decimal.Decimal `json:"to_user_cash" db:"to_user_cash"`
	Message             string          `json:"message" db:"message"`
	TradeID             *int64          `json:"trade_id,omitempty" db:"trade_id"` // nil when the backend returned no body
	SubmittedAt         time.Time       `json:"submitted_at" db:"submitted_at"`
}
