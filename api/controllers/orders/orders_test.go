package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubCart struct {
	items []models.LineItem
	err   error
}

func (s stubCart) Get(_ context.Context, userID string) (*cart.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cart.Cart{UserID: userID, Items: s.items}, nil
}

const validCreateBody = `{
	"billingInfo": {
		"name": "Ada Buyer", "email": "ada@example.com", "phone": "555-0100",
		"address": "1 Main St", "city": "Springfield", "postalCode": "12345", "country": "US"
	},
	"shipping": "5.00",
	"tax": "1.50"
}`

func TestCreateBuildsOrderFromCart(t *testing.T) {
	items := []models.LineItem{
		{ProductID: "p1", SellerID: "seller-a", Name: "Mug", Price: decimal.RequireFromString("8.00"), Quantity: 2},
	}
	var captured internalorders.CreateOrderInput
	svc := &fakeService{createFn: func(_ context.Context, input internalorders.CreateOrderInput) (*models.TotalOrder, error) {
		captured = input
		return &models.TotalOrder{ID: uuid.New(), UserID: input.UserID, Status: enums.OrderStatusPending}, nil
	}}

	rec := httptest.NewRecorder()
	Create(svc, stubCart{items: items}, logger.Nop())(rec, newRequest(http.MethodPost, "/api/v1/orders", validCreateBody, &customer, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, customer.UserID, captured.UserID)
	assert.Equal(t, items, captured.Items)
	assert.Equal(t, "ada@example.com", captured.Billing.Email)
	assert.True(t, decimal.RequireFromString("5.00").Equal(captured.Shipping))
	assert.True(t, decimal.RequireFromString("1.50").Equal(captured.Tax))

	var view struct {
		Order   models.TotalOrder `json:"order"`
		Actions []enums.Action    `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	assert.Equal(t, customer.UserID, view.Order.UserID)
	assert.Empty(t, view.Actions, "unpaid orders offer no actions")
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	svc := &fakeService{createFn: func(context.Context, internalorders.CreateOrderInput) (*models.TotalOrder, error) {
		t.Fatal("engine must not be called for an empty cart")
		return nil, nil
	}}

	rec := httptest.NewRecorder()
	Create(svc, stubCart{}, nil)(rec, newRequest(http.MethodPost, "/api/v1/orders", validCreateBody, &customer, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decode(t, rec).Error.Code)
}

func TestCreateValidatesBilling(t *testing.T) {
	svc := &fakeService{}
	body := `{"billingInfo": {"name": "Ada", "email": "not-an-email"}, "shipping": "0", "tax": "0"}`

	rec := httptest.NewRecorder()
	Create(svc, stubCart{}, nil)(rec, newRequest(http.MethodPost, "/api/v1/orders", body, &customer, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode(t, rec).Error.Details
	assert.Equal(t, "must be a valid email", details["billingInfo.email"])
	assert.Equal(t, "is required", details["billingInfo.city"])
}

func TestCreateRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	Create(&fakeService{}, stubCart{}, nil)(rec, newRequest(http.MethodPost, "/api/v1/orders", validCreateBody, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetailIncludesVisibleActions(t *testing.T) {
	order := paidOrder()
	svc := &fakeService{getFn: func(_ context.Context, id uuid.UUID, actor internalorders.Actor) (*models.TotalOrder, error) {
		assert.Equal(t, order.ID, id)
		assert.Equal(t, customer.UserID, actor.UserID)
		return order, nil
	}}

	rec := httptest.NewRecorder()
	Detail(svc, nil)(rec, newRequest(http.MethodGet, "/", "", &customer, map[string]string{"orderId": order.ID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Actions         []enums.Action            `json:"actions"`
		SubOrderActions map[string][]enums.Action `json:"subOrderActions"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	assert.Contains(t, view.Actions, enums.ActionCancel)
	assert.Len(t, view.SubOrderActions, 2)
	assert.Contains(t, view.SubOrderActions, order.SubOrders[0].ID.String())
}

func TestDetailRejectsMalformedID(t *testing.T) {
	rec := httptest.NewRecorder()
	Detail(&fakeService{}, nil)(rec, newRequest(http.MethodGet, "/", "", &customer, map[string]string{"orderId": "nope"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "orderId", decode(t, rec).Error.Details["field"])
}

func TestDetailPropagatesScopeErrors(t *testing.T) {
	svc := &fakeService{getFn: func(context.Context, uuid.UUID, internalorders.Actor) (*models.TotalOrder, error) {
		return nil, pkgerrors.New(pkgerrors.CodePermission, "order belongs to another account")
	}}

	rec := httptest.NewRecorder()
	Detail(svc, nil)(rec, newRequest(http.MethodGet, "/", "", &seller, map[string]string{"orderId": uuid.NewString()}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListPassesPaging(t *testing.T) {
	var got pagination.Params
	svc := &fakeService{listFn: func(_ context.Context, _ internalorders.Actor, params pagination.Params) (pagination.Page[models.TotalOrder], error) {
		got = params
		return pagination.Page[models.TotalOrder]{Items: []models.TotalOrder{}, NextCursor: "next"}, nil
	}}

	rec := httptest.NewRecorder()
	List(svc, nil)(rec, newRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", "", &customer, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.Params{Limit: 5, Cursor: "abc"}, got)

	rec = httptest.NewRecorder()
	List(svc, nil)(rec, newRequest(http.MethodGet, "/api/v1/orders?limit=1000", "", &customer, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelReturnsOutcome(t *testing.T) {
	order := paidOrder()
	svc := &fakeService{cancelFn: func(_ context.Context, input internalorders.CancellationInput) (*internalorders.CancellationResult, error) {
		assert.Equal(t, "changed my mind", input.Reason)
		order.CancelStatus = enums.CancelStatusRequested
		return &internalorders.CancellationResult{Order: order, Outcome: enums.CancellationAwaitingSellerApproval}, nil
	}}

	rec := httptest.NewRecorder()
	Cancel(svc, nil)(rec, newRequest(http.MethodPost, "/", `{"reason":"changed my mind"}`, &customer, map[string]string{"orderId": order.ID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Outcome enums.CancellationOutcome `json:"outcome"`
		Order   models.TotalOrder         `json:"order"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &view))
	assert.Equal(t, enums.CancellationAwaitingSellerApproval, view.Outcome)
	assert.Equal(t, enums.CancelStatusRequested, view.Order.CancelStatus)
}

func TestResolveCancellationParsesVerdict(t *testing.T) {
	order := paidOrder()
	svc := &fakeService{resolveCancel: func(_ context.Context, input internalorders.ResolutionInput) (*models.TotalOrder, error) {
		assert.Equal(t, enums.ResolutionReject, input.Action)
		assert.Equal(t, seller.UserID, input.Actor.UserID)
		return order, nil
	}}
	params := map[string]string{"orderId": order.ID.String()}

	rec := httptest.NewRecorder()
	ResolveCancellation(svc, nil)(rec, newRequest(http.MethodPost, "/", `{"action":"reject"}`, &seller, params))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ResolveCancellation(svc, nil)(rec, newRequest(http.MethodPost, "/", `{"action":"maybe"}`, &seller, params))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefundForwardsEvidence(t *testing.T) {
	order := paidOrder()
	subID := order.SubOrders[0].ID
	svc := &fakeService{refundFn: func(_ context.Context, input internalorders.RefundInput) (*models.TotalOrder, error) {
		require.NotNil(t, input.SubOrderID)
		assert.Equal(t, subID, *input.SubOrderID)
		assert.Equal(t, []string{"https://files.example.com/a.jpg"}, input.Evidence)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "sub-order has not been delivered")
	}}
	body := `{"subOrderId":"` + subID.String() + `","reason":"broken","evidence":["https://files.example.com/a.jpg"]}`

	rec := httptest.NewRecorder()
	Refund(svc, nil)(rec, newRequest(http.MethodPost, "/", body, &customer, map[string]string{"orderId": order.ID.String()}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), decode(t, rec).Error.Code)
}

func TestRefundRejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	Refund(&fakeService{}, nil)(rec, newRequest(http.MethodPost, "/", `{"reason":"x","amount":"1"}`, &customer, map[string]string{"orderId": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubOrderTransitions(t *testing.T) {
	order := paidOrder()
	subID := order.SubOrders[0].ID
	var processed, delivered, deleted uuid.UUID
	svc := &fakeService{
		processFn: func(_ context.Context, id uuid.UUID, _ internalorders.Actor) (*models.TotalOrder, error) {
			processed = id
			return order, nil
		},
		deliverFn: func(_ context.Context, id uuid.UUID, _ internalorders.Actor) (*models.TotalOrder, error) {
			delivered = id
			return order, nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID, _ internalorders.Actor) error {
			deleted = id
			return nil
		},
	}
	params := map[string]string{"subOrderId": subID.String()}

	for _, h := range []http.HandlerFunc{MarkProcessing(svc, nil), ConfirmDelivery(svc, nil), DeleteSubOrder(svc, nil)} {
		rec := httptest.NewRecorder()
		h(rec, newRequest(http.MethodPost, "/", "", &seller, params))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, subID, processed)
	assert.Equal(t, subID, delivered)
	assert.Equal(t, subID, deleted)
}

func TestSubOrderTransitionWithoutService(t *testing.T) {
	rec := httptest.NewRecorder()
	ConfirmDelivery(nil, nil)(rec, newRequest(http.MethodPost, "/", "", &seller, map[string]string{"subOrderId": uuid.NewString()}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSellerSubOrders(t *testing.T) {
	svc := &fakeService{listSubOrderFn: func(_ context.Context, actor internalorders.Actor, params pagination.Params) (pagination.Page[models.SubOrder], error) {
		assert.Equal(t, seller.UserID, actor.UserID)
		assert.Equal(t, pagination.DefaultLimit, params.Limit)
		return pagination.Page[models.SubOrder]{Items: []models.SubOrder{{ID: uuid.New(), SellerID: seller.UserID}}}, nil
	}}

	rec := httptest.NewRecorder()
	SellerSubOrders(svc, nil)(rec, newRequest(http.MethodGet, "/api/v1/suborders", "", &seller, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var page pagination.Page[models.SubOrder]
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &page))
	assert.Len(t, page.Items, 1)
}
