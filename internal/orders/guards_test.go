package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func paidOrder(statuses ...enums.OrderStatus) *models.TotalOrder {
	now := time.Now().UTC()
	order := &models.TotalOrder{
		UserID:        "cust-1",
		IsPaid:        true,
		PaidAt:        &now,
		PaymentResult: &models.PaymentResult{ID: "p"},
		Status:        enums.OrderStatusPending,
		CancelStatus:  enums.CancelStatusNone,
		RefundStatus:  enums.RefundStatusNone,
	}
	for i, status := range statuses {
		order.SubOrders = append(order.SubOrders, models.SubOrder{
			SellerID:     []string{"seller-a", "seller-b", "seller-c"}[i%3],
			Status:       status,
			RefundStatus: enums.RefundStatusNone,
		})
	}
	return order
}

func codeOf(err error) pkgerrors.Code {
	if err == nil {
		return ""
	}
	return pkgerrors.CodeOf(err)
}

func TestCanRequestCancellation(t *testing.T) {
	unpaid := paidOrder(enums.OrderStatusPending)
	unpaid.IsPaid = false

	requested := paidOrder(enums.OrderStatusPending)
	requested.CancelStatus = enums.CancelStatusRequested

	refunding := paidOrder(enums.OrderStatusSuccess)
	refunding.RefundStatus = enums.RefundStatusRequested

	rejectedBefore := paidOrder(enums.OrderStatusProcessing)
	rejectedBefore.CancelStatus = enums.CancelStatusRejected

	cases := map[string]struct {
		order *models.TotalOrder
		want  pkgerrors.Code
	}{
		"pending and processing":   {paidOrder(enums.OrderStatusPending, enums.OrderStatusProcessing), ""},
		"unpaid":                   {unpaid, pkgerrors.CodeConflict},
		"already requested":        {requested, pkgerrors.CodeConflict},
		"refund outstanding":       {refunding, pkgerrors.CodeConflict},
		"delivered sub-order":      {paidOrder(enums.OrderStatusPending, enums.OrderStatusSuccess), pkgerrors.CodeConflict},
		"earlier request rejected": {rejectedBefore, ""},
		"cancelled sub-order":      {paidOrder(enums.OrderStatusCancelled), pkgerrors.CodeConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, codeOf(CanRequestCancellation(tc.order)))
		})
	}
}

func TestCanRequestRefund(t *testing.T) {
	delivered := paidOrder(enums.OrderStatusSuccess)
	delivered.IsDelivered = true

	cancelPending := paidOrder(enums.OrderStatusSuccess, enums.OrderStatusPending)
	cancelPending.CancelStatus = enums.CancelStatusRequested

	unpaid := paidOrder(enums.OrderStatusSuccess)
	unpaid.IsPaid = false

	partial := paidOrder(enums.OrderStatusSuccess, enums.OrderStatusPending)

	assert.Equal(t, pkgerrors.Code(""), codeOf(CanRequestRefund(partial, nil)))
	assert.Equal(t, pkgerrors.Code(""), codeOf(CanRequestRefund(partial, &partial.SubOrders[0])))
	assert.Equal(t, pkgerrors.CodeConflict, codeOf(CanRequestRefund(partial, &partial.SubOrders[1])))
	assert.Equal(t, pkgerrors.CodeConflict, codeOf(CanRequestRefund(delivered, nil)))
	assert.Equal(t, pkgerrors.CodeConflict, codeOf(CanRequestRefund(cancelPending, nil)))
	assert.Equal(t, pkgerrors.CodeConflict, codeOf(CanRequestRefund(unpaid, nil)))
	assert.Equal(t, pkgerrors.CodeConflict, codeOf(CanRequestRefund(paidOrder(enums.OrderStatusPending), nil)))
}

func TestCanRecordPayment(t *testing.T) {
	assert.Equal(t, pkgerrors.CodeAlreadyPaid, codeOf(CanRecordPayment(paidOrder())))

	cancelled := &models.TotalOrder{Status: enums.OrderStatusCancelled}
	assert.Equal(t, pkgerrors.CodeConflict, codeOf(CanRecordPayment(cancelled)))
	assert.NoError(t, CanRecordPayment(&models.TotalOrder{Status: enums.OrderStatusPending}))
}

func TestCanConfirmDelivery(t *testing.T) {
	order := paidOrder(enums.OrderStatusProcessing, enums.OrderStatusCancelled)
	assert.NoError(t, CanConfirmDelivery(order, &order.SubOrders[0]))
	assert.Error(t, CanConfirmDelivery(order, &order.SubOrders[1]))

	order.CancelStatus = enums.CancelStatusRequested
	assert.Error(t, CanConfirmDelivery(order, &order.SubOrders[0]))
}

func TestAggregateRefundStatus(t *testing.T) {
	sub := func(status enums.RefundStatus) models.SubOrder { return models.SubOrder{RefundStatus: status} }

	assert.Equal(t, enums.RefundStatusRequested, AggregateRefundStatus([]models.SubOrder{sub(enums.RefundStatusRefunded), sub(enums.RefundStatusRequested)}))
	assert.Equal(t, enums.RefundStatusRefunded, AggregateRefundStatus([]models.SubOrder{sub(enums.RefundStatusRejected), sub(enums.RefundStatusRefunded)}))
	assert.Equal(t, enums.RefundStatusRejected, AggregateRefundStatus([]models.SubOrder{sub(enums.RefundStatusNone), sub(enums.RefundStatusRejected)}))
	assert.Equal(t, enums.RefundStatusNone, AggregateRefundStatus(nil))
}

func TestCanView(t *testing.T) {
	order := paidOrder(enums.OrderStatusPending, enums.OrderStatusPending)

	assert.True(t, CanView(order, Actor{UserID: "cust-1", Role: enums.RoleCustomer}))
	assert.False(t, CanView(order, Actor{UserID: "cust-9", Role: enums.RoleCustomer}))
	assert.True(t, CanView(order, Actor{UserID: "seller-b", Role: enums.RoleSeller}))
	assert.False(t, CanView(order, Actor{UserID: "seller-z", Role: enums.RoleSeller}))
	assert.True(t, CanView(order, Actor{UserID: "root", Role: enums.RoleAdmin}))
	assert.False(t, CanView(order, Actor{UserID: "cust-1"}))
}
