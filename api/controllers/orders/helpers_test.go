package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

var (
	customer = auth.Identity{UserID: "cust-1", Role: enums.RoleCustomer}
	seller   = auth.Identity{UserID: "seller-a", Role: enums.RoleSeller}
)

type fakeService struct {
	createFn       func(ctx context.Context, input internalorders.CreateOrderInput) (*models.TotalOrder, error)
	getFn          func(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error)
	listFn         func(ctx context.Context, actor internalorders.Actor, params pagination.Params) (pagination.Page[models.TotalOrder], error)
	cancelFn       func(ctx context.Context, input internalorders.CancellationInput) (*internalorders.CancellationResult, error)
	resolveCancel  func(ctx context.Context, input internalorders.ResolutionInput) (*models.TotalOrder, error)
	refundFn       func(ctx context.Context, input internalorders.RefundInput) (*models.TotalOrder, error)
	processFn      func(ctx context.Context, subOrderID uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error)
	deliverFn      func(ctx context.Context, subOrderID uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error)
	deleteFn       func(ctx context.Context, subOrderID uuid.UUID, actor internalorders.Actor) error
	listSubOrderFn func(ctx context.Context, actor internalorders.Actor, params pagination.Params) (pagination.Page[models.SubOrder], error)
}

func (f *fakeService) CreateOrder(ctx context.Context, input internalorders.CreateOrderInput) (*models.TotalOrder, error) {
	return f.createFn(ctx, input)
}

func (f *fakeService) GetOrder(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error) {
	return f.getFn(ctx, orderID, actor)
}

func (f *fakeService) ListOrders(ctx context.Context, actor internalorders.Actor, params pagination.Params) (pagination.Page[models.TotalOrder], error) {
	return f.listFn(ctx, actor, params)
}

func (f *fakeService) RecordPayment(context.Context, uuid.UUID, models.PaymentResult, internalorders.Actor) (*models.TotalOrder, error) {
	panic("not used by controllers")
}

func (f *fakeService) RequestCancellation(ctx context.Context, input internalorders.CancellationInput) (*internalorders.CancellationResult, error) {
	return f.cancelFn(ctx, input)
}

func (f *fakeService) ResolveCancellation(ctx context.Context, input internalorders.ResolutionInput) (*models.TotalOrder, error) {
	return f.resolveCancel(ctx, input)
}

func (f *fakeService) RequestRefund(ctx context.Context, input internalorders.RefundInput) (*models.TotalOrder, error) {
	return f.refundFn(ctx, input)
}

func (f *fakeService) ResolveRefund(context.Context, internalorders.ResolutionInput) (*models.TotalOrder, error) {
	panic("refund verdicts go through the refunds service")
}

func (f *fakeService) MarkProcessing(ctx context.Context, subOrderID uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error) {
	return f.processFn(ctx, subOrderID, actor)
}

func (f *fakeService) ConfirmDelivery(ctx context.Context, subOrderID uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error) {
	return f.deliverFn(ctx, subOrderID, actor)
}

func (f *fakeService) DeleteSubOrder(ctx context.Context, subOrderID uuid.UUID, actor internalorders.Actor) error {
	return f.deleteFn(ctx, subOrderID, actor)
}

func (f *fakeService) ListSellerSubOrders(ctx context.Context, actor internalorders.Actor, params pagination.Params) (pagination.Page[models.SubOrder], error) {
	return f.listSubOrderFn(ctx, actor, params)
}

// paidOrder is a paid two-seller order owned by customer.
func paidOrder() *models.TotalOrder {
	orderID := uuid.New()
	paidAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := func(sellerID string) models.SubOrder {
		return models.SubOrder{
			ID:           uuid.New(),
			TotalOrderID: orderID,
			SellerID:     sellerID,
			Subtotal:     decimal.RequireFromString("10.00"),
			Status:       enums.OrderStatusPending,
			RefundStatus: enums.RefundStatusNone,
		}
	}
	return &models.TotalOrder{
		ID:           orderID,
		UserID:       customer.UserID,
		TotalPrice:   decimal.RequireFromString("25.00"),
		IsPaid:       true,
		PaidAt:       &paidAt,
		Status:       enums.OrderStatusPending,
		CancelStatus: enums.CancelStatusNone,
		RefundStatus: enums.RefundStatusNone,
		SubOrders:    []models.SubOrder{sub("seller-a"), sub("seller-b")},
	}
}

func newRequest(method, target, body string, identity *auth.Identity, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := req.Context()
	if identity != nil {
		ctx = middleware.WithIdentity(ctx, *identity)
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
