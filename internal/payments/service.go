package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Service charges orders through the registered adapters and records the
// normalized result on the order.
type Service interface {
	PayOrder(ctx context.Context, input PayInput) (*models.TotalOrder, error)
	HandleProviderCallback(ctx context.Context, provider string, orderID uuid.UUID, raw json.RawMessage) (*models.TotalOrder, error)
}

// PayInput is a customer's payment attempt. Amount is optional; when sent it
// must match the order's total.
type PayInput struct {
	OrderID      uuid.UUID
	Provider     enums.PaymentProvider
	PaymentToken string
	Amount       *decimal.Decimal
	Actor        orders.Actor
}

type orderLedger interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.TotalOrder, error)
	RecordPayment(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, actor orders.Actor) (*models.TotalOrder, error)
}

type confirmer interface {
	Confirm(ctx context.Context, adapter Adapter, req ConfirmRequest) (*Confirmation, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Orders    orderLedger
	Registry  *Registry
	Confirmer confirmer
	Logger    *logger.Logger
}

type service struct {
	orders    orderLedger
	registry  *Registry
	confirmer confirmer
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("payment adapter registry required")
	}
	if params.Confirmer == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		orders:    params.Orders,
		registry:  params.Registry,
		confirmer: params.Confirmer,
		logg:      logg,
	}, nil
}

func (s *service) PayOrder(ctx context.Context, input PayInput) (*models.TotalOrder, error) {
	if err := orders.RequireRole(input.Actor, enums.RoleCustomer); err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, input.OrderID, input.Actor)
	if err != nil {
		return nil, err
	}
	if err := orders.CanRecordPayment(order); err != nil {
		return nil, err
	}
	if input.Amount != nil && !input.Amount.Equal(order.TotalPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount does not match order total").
			WithDetails(map[string]any{
				"amount":     input.Amount.StringFixed(2),
				"totalPrice": order.TotalPrice.StringFixed(2),
			})
	}
	adapter, err := s.registry.Get(input.Provider)
	if err != nil {
		return nil, err
	}

	confirmation, err := s.confirmer.Confirm(ctx, adapter, ConfirmRequest{
		OrderID:      order.ID,
		AmountCents:  MinorUnits(order.TotalPrice),
		PaymentToken: input.PaymentToken,
		PayerEmail:   order.BillingInfo.Email,
	})
	if err != nil {
		return nil, err
	}

	result := Normalize(string(confirmation.Provider), confirmation.Raw)
	return s.orders.RecordPayment(ctx, order.ID, result, input.Actor)
}

// HandleProviderCallback records a payment reported asynchronously by a
// provider. A non-final status is acknowledged without recording, and an
// order that is already paid counts as handled.
func (s *service) HandleProviderCallback(ctx context.Context, provider string, orderID uuid.UUID, raw json.RawMessage) (*models.TotalOrder, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "provider": provider})
	result := Normalize(provider, raw)
	if !Succeeded(result) {
		s.logg.Warn(s.logg.WithField(ctx, "status", result.Status), "ignoring non-final payment callback")
		return nil, nil
	}

	order, err := s.orders.RecordPayment(ctx, orderID, result, orders.SystemActor)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid) {
			s.logg.Info(ctx, "payment callback for already paid order")
			return s.orders.GetOrder(ctx, orderID, orders.SystemActor)
		}
		return nil, err
	}
	return order, nil
}
