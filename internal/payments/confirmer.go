package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryBase      = 200 * time.Millisecond
	defaultIdempotencyTTL = 30 * 24 * time.Hour
)

// idempotencyStore is the Redis surface used to remember confirmations.
type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PaymentKey(orderID string) string
}

// ConfirmerParams configures provider retries and the confirmation record.
type ConfirmerParams struct {
	Store          idempotencyStore
	MaxAttempts    uint64
	RetryBase      time.Duration
	IdempotencyTTL time.Duration
	Metrics        *metrics.OrderMetrics
	Logger         *logger.Logger
}

// Confirmer runs an adapter at most once per order. A stored confirmation
// is replayed without calling the provider again; transient provider errors
// are retried with exponential backoff.
type Confirmer struct {
	store       idempotencyStore
	maxAttempts uint64
	base        time.Duration
	ttl         time.Duration
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
}

func NewConfirmer(params ConfirmerParams) (*Confirmer, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	c := &Confirmer{
		store:       params.Store,
		maxAttempts: params.MaxAttempts,
		base:        params.RetryBase,
		ttl:         params.IdempotencyTTL,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.base <= 0 {
		c.base = defaultRetryBase
	}
	if c.ttl <= 0 {
		c.ttl = defaultIdempotencyTTL
	}
	if c.logg == nil {
		c.logg = logger.Nop()
	}
	return c, nil
}

// Confirm returns the order's confirmation, calling the adapter only when no
// earlier success is on record.
func (c *Confirmer) Confirm(ctx context.Context, adapter Adapter, req ConfirmRequest) (*Confirmation, error) {
	provider := string(adapter.Provider())
	orderID := req.OrderID.String()
	key := c.store.PaymentKey(orderID)
	ctx = c.logg.WithFields(ctx, map[string]any{"order_id": orderID, "provider": provider})

	if stored, ok := c.lookup(ctx, key); ok {
		c.metrics.PaymentOutcome(provider, "replayed")
		c.logg.Info(ctx, "payment confirmation replayed")
		return stored, nil
	}

	attempt := 0
	backoff := retry.WithMaxRetries(c.maxAttempts-1, retry.NewExponential(c.base))
	confirmation, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*Confirmation, error) {
		attempt++
		conf, err := adapter.ConfirmPayment(ctx, req)
		if err == nil {
			return conf, nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			c.logg.Warn(c.logg.WithField(ctx, "attempt", attempt), "payment provider unavailable, retrying")
			return nil, retry.RetryableError(err)
		}
		return nil, err
	})
	if err != nil {
		c.metrics.PaymentOutcome(provider, "failed")
		return nil, classifyProviderError(err)
	}

	if err := c.record(ctx, key, confirmation); err != nil {
		c.logg.Error(ctx, "failed to record payment confirmation", err)
	}
	c.metrics.PaymentOutcome(provider, "success")
	return confirmation, nil
}

func (c *Confirmer) lookup(ctx context.Context, key string) (*Confirmation, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logg.Warn(ctx, fmt.Sprintf("payment idempotency lookup failed: %v", err))
		}
		return nil, false
	}
	var stored Confirmation
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || len(stored.Raw) == 0 {
		c.logg.Warn(ctx, "discarding unreadable payment confirmation record")
		return nil, false
	}
	return &stored, true
}

func (c *Confirmer) record(ctx context.Context, key string, conf *Confirmation) error {
	payload, err := json.Marshal(conf)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, payload, c.ttl)
}

// classifyProviderError keeps typed errors. Exhausted retries stay
// CodeDependency so the client may retry under the same order id.
func classifyProviderError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment confirmation interrupted")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "payment confirmation failed")
}
