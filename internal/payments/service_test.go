package payments

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubLedger struct {
	order    *models.TotalOrder
	recorded []models.PaymentResult
	actors   []orders.Actor
}

func (s *stubLedger) GetOrder(_ context.Context, orderID uuid.UUID, actor orders.Actor) (*models.TotalOrder, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !orders.CanView(s.order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodePermission, "order belongs to another account")
	}
	return s.order, nil
}

func (s *stubLedger) RecordPayment(_ context.Context, orderID uuid.UUID, result models.PaymentResult, actor orders.Actor) (*models.TotalOrder, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err := orders.CanRecordPayment(s.order); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	s.order.IsPaid = true
	s.order.PaidAt = &now
	s.order.PaymentResult = &result
	s.recorded = append(s.recorded, result)
	s.actors = append(s.actors, actor)
	return s.order, nil
}

type paymentHarness struct {
	svc     Service
	ledger  *stubLedger
	adapter *flakyAdapter
	store   *memoryStore
	order   *models.TotalOrder
	actor   orders.Actor
}

func newPaymentHarness(t *testing.T) *paymentHarness {
	t.Helper()
	order := &models.TotalOrder{
		ID:          uuid.New(),
		UserID:      "cust-1",
		BillingInfo: models.BillingInfo{Name: "Ana", Email: "ana@example.com"},
		TotalPrice:  decimal.RequireFromString("45.99"),
		Status:      enums.OrderStatusPending,
	}
	ledger := &stubLedger{order: order}
	adapter := &flakyAdapter{}
	reg, err := NewRegistry(adapter)
	require.NoError(t, err)
	store := newMemoryStore()
	confirmer, err := NewConfirmer(ConfirmerParams{Store: store, RetryBase: time.Millisecond})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Orders: ledger, Registry: reg, Confirmer: confirmer})
	require.NoError(t, err)
	return &paymentHarness{
		svc:     svc,
		ledger:  ledger,
		adapter: adapter,
		store:   store,
		order:   order,
		actor:   orders.Actor{UserID: "cust-1", Role: enums.RoleCustomer},
	}
}

func TestPayOrderRecordsNormalizedResult(t *testing.T) {
	h := newPaymentHarness(t)
	amount := decimal.RequireFromString("45.99")

	order, err := h.svc.PayOrder(context.Background(), PayInput{
		OrderID:  h.order.ID,
		Provider: enums.PaymentProviderCash,
		Amount:   &amount,
		Actor:    h.actor,
	})
	require.NoError(t, err)

	assert.True(t, order.IsPaid)
	require.Len(t, h.ledger.recorded, 1)
	assert.Equal(t, enums.PaymentProviderCash, h.ledger.recorded[0].Provider)
	assert.Equal(t, "cash-"+h.order.ID.String(), h.ledger.recorded[0].ID)
	assert.Equal(t, "ana@example.com", h.ledger.recorded[0].PayerEmail)
	assert.Equal(t, h.actor, h.ledger.actors[0])
}

func TestPayOrderTwiceIsAlreadyPaid(t *testing.T) {
	h := newPaymentHarness(t)
	input := PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCash, Actor: h.actor}

	_, err := h.svc.PayOrder(context.Background(), input)
	require.NoError(t, err)

	_, err = h.svc.PayOrder(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid))
	assert.Equal(t, 1, h.adapter.calls)
}

func TestPayOrderRejectsAmountMismatch(t *testing.T) {
	h := newPaymentHarness(t)
	amount := decimal.RequireFromString("45.98")

	_, err := h.svc.PayOrder(context.Background(), PayInput{
		OrderID:  h.order.ID,
		Provider: enums.PaymentProviderCash,
		Amount:   &amount,
		Actor:    h.actor,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, h.adapter.calls)
	assert.False(t, h.order.IsPaid)
}

func TestPayOrderGuards(t *testing.T) {
	h := newPaymentHarness(t)

	_, err := h.svc.PayOrder(context.Background(), PayInput{OrderID: uuid.New(), Provider: enums.PaymentProviderCash, Actor: h.actor})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderWallet, Actor: h.actor})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	stranger := orders.Actor{UserID: "cust-2", Role: enums.RoleCustomer}
	_, err = h.svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCash, Actor: stranger})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePermission))

	seller := orders.Actor{UserID: "seller-a", Role: enums.RoleSeller}
	_, err = h.svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCash, Actor: seller})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePermission))

	h.order.Status = enums.OrderStatusCancelled
	_, err = h.svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCash, Actor: h.actor})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	assert.Zero(t, h.adapter.calls)
}

func TestPayOrderSurfacesProviderFailure(t *testing.T) {
	h := newPaymentHarness(t)
	h.adapter.errs = []error{pkgerrors.New(pkgerrors.CodeProvider, "card declined")}

	_, err := h.svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCash, Actor: h.actor})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProvider))
	assert.Empty(t, h.ledger.recorded)
}

func TestHandleProviderCallback(t *testing.T) {
	h := newPaymentHarness(t)
	raw := json.RawMessage(`{"id":"pi_42","status":"succeeded","created":1741597200}`)

	order, err := h.svc.HandleProviderCallback(context.Background(), "card", h.order.ID, raw)
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	assert.Equal(t, orders.SystemActor, h.ledger.actors[0])

	again, err := h.svc.HandleProviderCallback(context.Background(), "card", h.order.ID, raw)
	require.NoError(t, err)
	assert.Equal(t, h.order.ID, again.ID)
	assert.Len(t, h.ledger.recorded, 1)
}

func TestHandleProviderCallbackIgnoresNonFinalStatus(t *testing.T) {
	h := newPaymentHarness(t)

	order, err := h.svc.HandleProviderCallback(context.Background(), "card", h.order.ID, json.RawMessage(`{"id":"pi_1","status":"processing"}`))
	require.NoError(t, err)
	assert.Nil(t, order)

	order, err = h.svc.HandleProviderCallback(context.Background(), "barter", h.order.ID, json.RawMessage(`{"id":"x"}`))
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.Empty(t, h.ledger.recorded)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Orders: &stubLedger{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Orders: &stubLedger{}, Registry: &Registry{}})
	assert.Error(t, err)
}

// sourceAdapter declines one token and remembers which token used each
// attempt key.
type sourceAdapter struct {
	tokensByKey map[string]string
	keys        []string
}

func (s *sourceAdapter) Provider() enums.PaymentProvider { return enums.PaymentProviderCard }

func (s *sourceAdapter) ConfirmPayment(_ context.Context, req ConfirmRequest) (*Confirmation, error) {
	key := req.attemptKey()
	if token, ok := s.tokensByKey[key]; ok && token != req.PaymentToken {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused")
	}
	s.tokensByKey[key] = req.PaymentToken
	s.keys = append(s.keys, key)
	if req.PaymentToken == "pm_card_declined" {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "card declined")
	}
	raw, err := json.Marshal(cardPayload{ID: "pi_ok", Status: "succeeded"})
	if err != nil {
		return nil, err
	}
	return &Confirmation{Provider: enums.PaymentProviderCard, Raw: raw}, nil
}

func TestPayOrderSucceedsWithNewCardAfterDecline(t *testing.T) {
	h := newPaymentHarness(t)
	adapter := &sourceAdapter{tokensByKey: map[string]string{}}
	reg, err := NewRegistry(adapter)
	require.NoError(t, err)
	confirmer, err := NewConfirmer(ConfirmerParams{Store: h.store, RetryBase: time.Millisecond})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Orders: h.ledger, Registry: reg, Confirmer: confirmer})
	require.NoError(t, err)

	_, err = svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCard, PaymentToken: "pm_card_declined", Actor: h.actor})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProvider))
	require.False(t, h.order.IsPaid)

	order, err := svc.PayOrder(context.Background(), PayInput{OrderID: h.order.ID, Provider: enums.PaymentProviderCard, PaymentToken: "pm_card_visa", Actor: h.actor})
	require.NoError(t, err)
	assert.True(t, order.IsPaid)
	require.Len(t, adapter.keys, 2)
	assert.NotEqual(t, adapter.keys[0], adapter.keys[1])
}
