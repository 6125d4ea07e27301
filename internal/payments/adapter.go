package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Adapter confirms one order payment against a provider.
type Adapter interface {
	Provider() enums.PaymentProvider
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (*Confirmation, error)
}

// ConfirmRequest is what every adapter needs to charge an order.
type ConfirmRequest struct {
	OrderID      uuid.UUID
	AmountCents  int64
	PaymentToken string
	PayerEmail   string
}

// AttemptKey is the provider idempotency key for one payment attempt: the
// order id plus a digest of the payment token. Transient retries with the
// same token share the key; a new card or wallet source gets a fresh one.
// The result stays within Square's 45 character limit.
func AttemptKey(orderID uuid.UUID, paymentToken string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(paymentToken)))
	return orderID.String() + "-" + hex.EncodeToString(sum[:4])
}

func (r ConfirmRequest) attemptKey() string {
	return AttemptKey(r.OrderID, r.PaymentToken)
}

// Confirmation is the provider's answer in the provider's own payload shape.
// Normalize turns it into a models.PaymentResult.
type Confirmation struct {
	Provider enums.PaymentProvider `json:"provider"`
	Raw      json.RawMessage       `json:"raw"`
}

// Registry looks adapters up by provider.
type Registry struct {
	adapters map[enums.PaymentProvider]Adapter
}

// NewRegistry indexes the adapters; a provider registered twice is an error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	reg := &Registry{adapters: make(map[enums.PaymentProvider]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := adapter.Provider()
		if _, exists := reg.adapters[provider]; exists {
			return nil, fmt.Errorf("payment adapter %q registered twice", provider)
		}
		reg.adapters[provider] = adapter
	}
	return reg, nil
}

// Get returns the adapter for provider or a validation error.
func (r *Registry) Get(provider enums.PaymentProvider) (Adapter, error) {
	if r != nil {
		if adapter, ok := r.adapters[provider]; ok {
			return adapter, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment provider not supported").
		WithDetails(map[string]any{"provider": provider})
}

// Providers lists the registered providers in name order.
func (r *Registry) Providers() []enums.PaymentProvider {
	if r == nil {
		return nil
	}
	out := make([]enums.PaymentProvider, 0, len(r.adapters))
	for provider := range r.adapters {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
