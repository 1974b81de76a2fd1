// Package inventory provides point-in-time product snapshots for cart
// reconciliation. The storefront owns no product data; snapshots come from
// the upstream catalog and are only micro-cached to absorb burst traffic
// within a single render cycle.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotFound indicates the product does not exist upstream.
var ErrNotFound = errors.New("product not found")

// Snapshot is the upstream truth about a product at fetch time.
type Snapshot struct {
	ProductID        string `json:"productId"`
	Name             string `json:"name"`
	Active           bool   `json:"active"`
	Stock            int    `json:"stock"`
	MaxOrderQuantity int    `json:"maxOrderQuantity"`
	Price            int64  `json:"price"`
	OfferPrice       int64  `json:"offerPrice"`
}

// InStock reports whether any quantity can be fulfilled.
func (s Snapshot) InStock() bool {
	return s.Active && s.Stock > 0
}

// Source fetches a product snapshot.
type Source interface {
	Product(ctx context.Context, productID string) (Snapshot, error)
}

// CachedSource wraps a Source with a short-lived redis cache. The TTL is
// deliberately a few seconds: long enough to collapse the burst of lookups a
// single checkout produces, short enough that stock truth stays fresh.
type CachedSource struct {
	Inner Source
	R     *redis.Client
	TTL   time.Duration
	Log   zerolog.Logger
}

const defaultSnapshotTTL = 5 * time.Second

func snapshotKey(productID string) string {
	return "inv:" + productID
}

// Product returns the cached snapshot when present, otherwise fetches and
// caches it. Cache failures degrade to a direct fetch; fetch errors are never
// cached.
func (c *CachedSource) Product(ctx context.Context, productID string) (Snapshot, error) {
	if c == nil || c.Inner == nil {
		return Snapshot{}, errors.New("inventory source not configured")
	}
	if c.R != nil {
		raw, err := c.R.Get(ctx, snapshotKey(productID)).Bytes()
		if err == nil {
			var snap Snapshot
			if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
				return snap, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.Log.Warn().Err(err).Str("product_id", productID).Msg("snapshot cache read failed")
		}
	}
	snap, err := c.Inner.Product(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	if c.R != nil {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = defaultSnapshotTTL
		}
		if raw, err := json.Marshal(snap); err == nil {
			if err := c.R.Set(ctx, snapshotKey(productID), raw, ttl).Err(); err != nil {
				c.Log.Warn().Err(err).Str("product_id", productID).Msg("snapshot cache write failed")
			}
		}
	}
	return snap, nil
}
