// Package catalog supplies the candidate items a user can drag into a trade
// draft: their own products and the counterpart's products, filterable by
// free text and category.
//
// The registry never touches drafts. Fetch failures are returned wrapped in
// ErrFetchFailure; they are never swallowed into an empty list.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/swapdesk/swap-desk/internal/metrics"
	"github.com/swapdesk/swap-desk/internal/model"
)

// PlaceholderImage is shown for products the backend returns without images.
const PlaceholderImage = "https://images.pexels.com/photos/607812/pexels-photo-607812.jpeg?auto=compress&cs=tinysrgb&w=400"

// AllCategories matches every category in a Filter.
const AllCategories = "all"

const listingKey = "catalog:listing"

var (
	// ErrFetchFailure wraps any error from the upstream listing endpoints.
	ErrFetchFailure = errors.New("catalog: fetch failed")

	// ErrProductNotFound is returned by Lookup for unknown product ids.
	ErrProductNotFound = errors.New("catalog: product not found")
)

// Source is the upstream the registry reads from.
type Source interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Query    string `json:"q"`
	Category string `json:"category"`
}

// Listing is one snapshot of the upstream catalog.
type Listing struct {
	Products   []model.Product  `json:"products"`
	Categories []model.Category `json:"categories"`
}

// Registry serves product listings from a Source, optionally behind a
// Redis read-through cache.
type Registry struct {
	src Source
	rdb *redis.Client // optional
	ttl time.Duration
}

// NewRegistry creates a registry over src. Pass nil for rdb to disable
// caching.
func NewRegistry(src Source, rdb *redis.Client, ttl time.Duration) *Registry {
	return &Registry{src: src, rdb: rdb, ttl: ttl}
}

// ListOwnedBy returns userID's own products matching f.
func (r *Registry) ListOwnedBy(ctx context.Context, userID string, f Filter) ([]model.Product, error) {
	return r.listByOwner(ctx, userID, f)
}

// ListAvailableFrom returns the counterpart userID's products matching f.
func (r *Registry) ListAvailableFrom(ctx context.Context, userID string, f Filter) ([]model.Product, error) {
	return r.listByOwner(ctx, userID, f)
}

// Categories returns "all" followed by the distinct category names, taken
// from the categories endpoint and then from any product category it did
// not list.
func (r *Registry) Categories(ctx context.Context) ([]string, error) {
	l, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	names := []string{AllCategories}
	seen := map[string]bool{AllCategories: true}
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}
	for _, c := range l.Categories {
		add(c.Name)
	}
	for _, p := range l.Products {
		add(p.Category.Name)
	}
	return names, nil
}

// Lookup returns the product with the given id.
func (r *Registry) Lookup(ctx context.Context, productID int64) (model.Product, error) {
	l, err := r.snapshot(ctx)
	if err != nil {
		return model.Product{}, err
	}
	for _, p := range l.Products {
		if p.ID == productID {
			return p, nil
		}
	}
	return model.Product{}, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
}

func (r *Registry) listByOwner(ctx context.Context, ownerID string, f Filter) ([]model.Product, error) {
	l, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := []model.Product{}
	for _, p := range l.Products {
		if p.CreatedByUserID == ownerID && f.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Matches reports whether p passes the filter: case-insensitive substring
// on the name, case-insensitive equality on the category name.
func (f Filter) Matches(p model.Product) bool {
	if q := strings.TrimSpace(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(f.Category, AllCategories) {
		if !strings.EqualFold(p.Category.Name, f.Category) {
			return false
		}
	}
	return true
}

// snapshot returns the current listing, from cache when possible.
func (r *Registry) snapshot(ctx context.Context) (*Listing, error) {
	if r.rdb != nil {
		data, err := r.rdb.Get(ctx, listingKey).Bytes()
		if err == nil {
			var l Listing
			if json.Unmarshal(data, &l) == nil {
				metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
				return &l, nil
			}
		}
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	l, degraded, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	// A degraded listing is served but not cached, so the next read retries
	// the categories endpoint.
	if r.rdb != nil && !degraded {
		if data, err := json.Marshal(l); err == nil {
			if err := r.rdb.Set(ctx, listingKey, data, r.ttl).Err(); err != nil {
				slog.Warn("catalog cache write failed", "err", err)
			}
		}
	}
	return l, nil
}

// fetch loads products and categories from the source concurrently. Only a
// products failure fails the listing; without the categories endpoint the
// names are derived from the products and degraded is true.
func (r *Registry) fetch(ctx context.Context) (l *Listing, degraded bool, err error) {
	l = &Listing{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		products, err := r.src.ListProducts(gctx)
		if err != nil {
			return err
		}
		l.Products = normalize(products)
		return nil
	})
	g.Go(func() error {
		categories, err := r.src.ListCategories(gctx)
		if err != nil {
			slog.Warn("catalog categories unavailable, deriving from products", "err", err)
			degraded = true
			return nil
		}
		l.Categories = categories
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}
	return l, degraded, nil
}

// normalize fills in the placeholder image and empty attribute lists.
func normalize(products []model.Product) []model.Product {
	out := make([]model.Product, len(products))
	for i, p := range products {
		if len(p.Images) == 0 {
			p.Images = []string{PlaceholderImage}
		}
		if p.Attributes == nil {
			p.Attributes = []model.Attribute{}
		}
		out[i] = p
	}
	return out
}
