// Package itemref handles parsing and formatting of slot item identifiers.
//
// Product items are keyed by the backend product id so the same product
// always maps to the same item id; cash items carry a generated token.
package itemref

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/swapdesk/swap-desk/internal/model"
)

// refRegex matches: {kind}-{token}
// Examples: product-42, cash-3f0c2a9e-5b1d-4a59-9d0b-2f6f0d7f9a11
var refRegex = regexp.MustCompile(`^(product|cash)-([0-9A-Za-z-]+)$`)

var (
	ErrInvalidRef       = errors.New("itemref: invalid item id format")
	ErrInvalidProductID = errors.New("itemref: product id must be a positive integer")
)

// Ref is a parsed item identifier.
type Ref struct {
	ID        string         `json:"id"`
	Kind      model.ItemKind `json:"kind"`
	ProductID int64          `json:"product_id,omitempty"`
	Token     string         `json:"token"`
}

// Parse parses and validates an item id.
// Format: product-{productID} | cash-{token}
func Parse(id string) (*Ref, error) {
	matches := refRegex.FindStringSubmatch(id)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q (expected product-{id} or cash-{token})", ErrInvalidRef, id)
	}

	ref := &Ref{
		ID:    id,
		Kind:  model.ItemKind(matches[1]),
		Token: matches[2],
	}

	if ref.Kind == model.KindProduct {
		pid, err := strconv.ParseInt(ref.Token, 10, 64)
		if err != nil || pid <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProductID, ref.Token)
		}
		ref.ProductID = pid
	}

	return ref, nil
}

// Product returns the item id for a backend product.
func Product(productID int64) string {
	return "product-" + strconv.FormatInt(productID, 10)
}

// NewCash returns a fresh cash item id.
func NewCash() string {
	return "cash-" + uuid.NewString()
}
