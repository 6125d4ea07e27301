package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const defaultTTL = 14 * 24 * time.Hour

// Cart is the customer's pending basket. Checkout freezes it into an order
// snapshot; payment clears it.
type Cart struct {
	UserID    string            `json:"userId"`
	Items     []models.LineItem `json:"items"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// Store keeps one JSON cart per user in Redis.
type Store struct {
	redis kv
	ttl   time.Duration
	clock func() time.Time
}

func NewStore(redis kv, ttl time.Duration) (*Store, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{redis: redis, ttl: ttl, clock: time.Now}, nil
}

// Get returns the user's cart; a missing key is an empty cart.
func (s *Store) Get(ctx context.Context, userID string) (*Cart, error) {
	raw, err := s.redis.Get(ctx, s.redis.CartKey(userID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return &Cart{UserID: userID, Items: []models.LineItem{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	if cart.Items == nil {
		cart.Items = []models.LineItem{}
	}
	return &cart, nil
}

// Put replaces the cart. Lines for the same product and seller are merged.
func (s *Store) Put(ctx context.Context, userID string, items []models.LineItem) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || strings.TrimSpace(item.SellerID) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item needs a product and a seller").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity < 1 || item.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item quantity or price is invalid").
				WithDetails(map[string]any{"index": i})
		}
	}

	cart := &Cart{UserID: userID, Items: mergeLines(items), UpdatedAt: s.clock().UTC()}
	payload, err := json.Marshal(cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.redis.Set(ctx, s.redis.CartKey(userID), payload, s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return cart, nil
}

// Clear drops the user's cart.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.redis.CartKey(userID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func mergeLines(items []models.LineItem) []models.LineItem {
	type lineKey struct{ seller, product string }
	keyOf := func(item models.LineItem) lineKey { return lineKey{item.SellerID, item.ProductID} }

	grouped := lo.GroupBy(items, keyOf)
	order := lo.Uniq(lo.Map(items, func(item models.LineItem, _ int) lineKey { return keyOf(item) }))
	return lo.Map(order, func(key lineKey, _ int) models.LineItem {
		lines := grouped[key]
		merged := lines[0]
		merged.Quantity = lo.SumBy(lines, func(l models.LineItem) int { return l.Quantity })
		return merged
	})
}
