package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/square"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type stubIntents struct {
	created       []stripeclient.IntentParams
	confirmed     []string
	confirmKeys   []string
	createStatus  stripe.PaymentIntentStatus
	confirmStatus stripe.PaymentIntentStatus
	createErr     error
}

func (s *stubIntents) CreateIntent(_ context.Context, p stripeclient.IntentParams) (*stripe.PaymentIntent, error) {
	s.created = append(s.created, p)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &stripe.PaymentIntent{ID: "pi_" + p.OrderID[:8], Status: s.createStatus, Created: 1741597200}, nil
}

func (s *stubIntents) ConfirmIntent(_ context.Context, orderID, intentID, paymentMethod, idempotencyKey string) (*stripe.PaymentIntent, error) {
	s.confirmed = append(s.confirmed, intentID+"|"+paymentMethod)
	s.confirmKeys = append(s.confirmKeys, idempotencyKey)
	return &stripe.PaymentIntent{ID: intentID, Status: s.confirmStatus, Created: 1741597200, ReceiptEmail: "ana@example.com"}, nil
}

func TestCardAdapterCreatesThenConfirms(t *testing.T) {
	intents := &stubIntents{
		createStatus:  stripe.PaymentIntentStatusRequiresConfirmation,
		confirmStatus: stripe.PaymentIntentStatusSucceeded,
	}
	adapter, err := NewCardAdapter(intents)
	require.NoError(t, err)

	orderID := uuid.New()
	conf, err := adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: orderID, AmountCents: 4599, PaymentToken: "pm_card_visa"})
	require.NoError(t, err)

	require.Len(t, intents.created, 1)
	assert.Equal(t, int64(4599), intents.created[0].AmountCents)
	assert.Equal(t, orderID.String(), intents.created[0].OrderID)
	require.Len(t, intents.confirmed, 1)
	assert.Equal(t, AttemptKey(orderID, "pm_card_visa"), intents.created[0].IdempotencyKey)
	assert.Equal(t, []string{AttemptKey(orderID, "pm_card_visa")}, intents.confirmKeys)

	result := Normalize(string(conf.Provider), conf.Raw)
	assert.Equal(t, enums.PaymentProviderCard, result.Provider)
	assert.Equal(t, "succeeded", result.Status)
	assert.Equal(t, "ana@example.com", result.PayerEmail)
	assert.True(t, Succeeded(result))
}

func TestCardAdapterRejectsUncapturedIntent(t *testing.T) {
	adapter, err := NewCardAdapter(&stubIntents{
		createStatus:  stripe.PaymentIntentStatusRequiresConfirmation,
		confirmStatus: stripe.PaymentIntentStatusRequiresAction,
	})
	require.NoError(t, err)

	_, err = adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: uuid.New(), AmountCents: 100, PaymentToken: "pm"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProvider))
}

func TestCardAdapterRequiresToken(t *testing.T) {
	intents := &stubIntents{}
	adapter, err := NewCardAdapter(intents)
	require.NoError(t, err)

	_, err = adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: uuid.New(), PaymentToken: "  "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, intents.created)

	_, err = NewCardAdapter(nil)
	assert.Error(t, err)
}

func TestCardAdapterPassesProviderErrorsThrough(t *testing.T) {
	adapter, err := NewCardAdapter(&stubIntents{createErr: pkgerrors.New(pkgerrors.CodeDependency, "stripe create payment intent failed")})
	require.NoError(t, err)

	_, err = adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: uuid.New(), PaymentToken: "pm"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

type stubWallet struct {
	params []square.PaymentCreateParams
	status string
}

func (s *stubWallet) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	s.params = append(s.params, params)
	id := "sq-" + params.ReferenceID
	updated := "2025-03-10T09:00:00Z"
	return &sq.Payment{ID: &id, Status: &s.status, UpdatedAt: &updated}, nil
}

func TestWalletAdapterKeysChargeByOrderAndSource(t *testing.T) {
	wallet := &stubWallet{status: "COMPLETED"}
	adapter, err := NewWalletAdapter(wallet)
	require.NoError(t, err)

	orderID := uuid.New()
	conf, err := adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: orderID, AmountCents: 1250, PaymentToken: "cnon:card-nonce-ok"})
	require.NoError(t, err)

	require.Len(t, wallet.params, 1)
	assert.Equal(t, AttemptKey(orderID, "cnon:card-nonce-ok"), wallet.params[0].IdempotencyKey)
	assert.LessOrEqual(t, len(wallet.params[0].IdempotencyKey), 45)
	assert.Equal(t, int64(1250), wallet.params[0].AmountCents)

	result := Normalize(string(conf.Provider), conf.Raw)
	assert.Equal(t, enums.PaymentProviderWallet, result.Provider)
	assert.Equal(t, "sq-"+orderID.String(), result.ID)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), result.UpdateTime)
}

func TestWalletAdapterRejectsIncompletePayment(t *testing.T) {
	adapter, err := NewWalletAdapter(&stubWallet{status: "APPROVED"})
	require.NoError(t, err)

	_, err = adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: uuid.New(), PaymentToken: "cnon"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProvider))
}

func TestCashAdapterSynthesizesCompletion(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	adapter := NewCashAdapter(func() time.Time { return at })

	orderID := uuid.New()
	conf, err := adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: orderID})
	require.NoError(t, err)

	result := Normalize(string(conf.Provider), conf.Raw)
	assert.Equal(t, enums.PaymentProviderCash, result.Provider)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, at, result.UpdateTime)
	assert.True(t, Succeeded(result))
}

func TestRegistry(t *testing.T) {
	card, err := NewCardAdapter(&stubIntents{})
	require.NoError(t, err)
	reg, err := NewRegistry(NewCashAdapter(nil), card)
	require.NoError(t, err)

	assert.Equal(t, []enums.PaymentProvider{enums.PaymentProviderCard, enums.PaymentProviderCash}, reg.Providers())

	got, err := reg.Get(enums.PaymentProviderCash)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderCash, got.Provider())

	_, err = reg.Get(enums.PaymentProviderWallet)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewRegistry(NewCashAdapter(nil), NewCashAdapter(nil))
	assert.Error(t, err)
}

// keyedIntents answers like the PaymentIntents API: a key reused with a
// different payment method is an idempotency error, and the declined test
// card fails confirmation.
type keyedIntents struct {
	methodsByKey map[string]string
	createKeys   []string
}

func (k *keyedIntents) CreateIntent(_ context.Context, p stripeclient.IntentParams) (*stripe.PaymentIntent, error) {
	if k.methodsByKey == nil {
		k.methodsByKey = map[string]string{}
	}
	if method, ok := k.methodsByKey[p.IdempotencyKey]; ok && method != p.PaymentMethod {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "stripe create payment intent failed")
	}
	k.methodsByKey[p.IdempotencyKey] = p.PaymentMethod
	k.createKeys = append(k.createKeys, p.IdempotencyKey)
	return &stripe.PaymentIntent{ID: "pi_" + p.PaymentMethod, Status: stripe.PaymentIntentStatusRequiresConfirmation}, nil
}

func (k *keyedIntents) ConfirmIntent(_ context.Context, _, intentID, paymentMethod, _ string) (*stripe.PaymentIntent, error) {
	if paymentMethod == "pm_card_declined" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "stripe confirm payment intent failed")
	}
	return &stripe.PaymentIntent{ID: intentID, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func TestCardAdapterAcceptsNewCardAfterDecline(t *testing.T) {
	intents := &keyedIntents{}
	adapter, err := NewCardAdapter(intents)
	require.NoError(t, err)
	orderID := uuid.New()

	_, err = adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: orderID, AmountCents: 900, PaymentToken: "pm_card_declined"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProvider))

	conf, err := adapter.ConfirmPayment(context.Background(), ConfirmRequest{OrderID: orderID, AmountCents: 900, PaymentToken: "pm_card_visa"})
	require.NoError(t, err)
	assert.True(t, Succeeded(Normalize(string(conf.Provider), conf.Raw)))

	require.Len(t, intents.createKeys, 2)
	assert.NotEqual(t, intents.createKeys[0], intents.createKeys[1])
}

func TestAttemptKey(t *testing.T) {
	orderID := uuid.New()

	assert.Equal(t, AttemptKey(orderID, "tok_a"), AttemptKey(orderID, " tok_a "))
	assert.NotEqual(t, AttemptKey(orderID, "tok_a"), AttemptKey(orderID, "tok_b"))
	assert.NotEqual(t, AttemptKey(orderID, "tok_a"), AttemptKey(uuid.New(), "tok_a"))
	assert.Len(t, AttemptKey(orderID, "tok_a"), 45)
	assert.Contains(t, AttemptKey(orderID, "tok_a"), orderID.String())
}
