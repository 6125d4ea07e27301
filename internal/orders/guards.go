package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// The guards below are pure and shared by the engine and the role gate.
// Each returns nil when the transition is allowed, otherwise a typed error.

// RequireRole fails with PERMISSION_DENIED unless actor holds one of roles.
func RequireRole(actor Actor, roles ...enums.Role) error {
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodePermission, "role not permitted for this action")
}

// OwnsOrder reports whether actor is the customer who placed order.
func OwnsOrder(order *models.TotalOrder, actor Actor) bool {
	return order != nil && actor.UserID != "" && order.UserID == actor.UserID
}

// OwnsSubOrder reports whether actor is the seller of sub.
func OwnsSubOrder(sub *models.SubOrder, actor Actor) bool {
	return sub != nil && actor.Role == enums.RoleSeller && actor.UserID != "" && sub.SellerID == actor.UserID
}

// CanView reports whether actor may read order.
func CanView(order *models.TotalOrder, actor Actor) bool {
	switch actor.Role {
	case enums.RoleAdmin:
		return true
	case enums.RoleSeller:
		return order.HasSeller(actor.UserID)
	case enums.RoleCustomer:
		return OwnsOrder(order, actor)
	}
	return false
}

func CanRecordPayment(order *models.TotalOrder) error {
	if order.IsPaid {
		return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order is already paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is cancelled")
	}
	return nil
}

// CanRequestCancellation allows a request while the order is paid, has no
// outstanding cancellation or refund, and no seller has finished a sub-order.
func CanRequestCancellation(order *models.TotalOrder) error {
	if !order.IsPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, "order has not been paid")
	}
	if order.CancelStatus == enums.CancelStatusRequested {
		return pkgerrors.New(pkgerrors.CodeConflict, "a cancellation request is already pending")
	}
	if order.RefundStatus != enums.RefundStatusNone {
		return pkgerrors.New(pkgerrors.CodeConflict, "order has a refund request")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is already cancelled")
	}
	for _, sub := range order.SubOrders {
		if !sub.Status.Cancellable() {
			return pkgerrors.New(pkgerrors.CodeConflict, "a sub-order can no longer be cancelled").
				WithDetails(map[string]any{"subOrderId": sub.ID, "status": sub.Status})
		}
	}
	return nil
}

func CanResolveCancellation(order *models.TotalOrder) error {
	if order.CancelStatus != enums.CancelStatusRequested {
		return pkgerrors.New(pkgerrors.CodeConflict, "no cancellation request is pending")
	}
	return nil
}

// CanRequestRefund allows a request on a paid order that is not yet fully
// delivered, has at least one successful sub-order and no outstanding
// request. When target is set it must itself be successful.
func CanRequestRefund(order *models.TotalOrder, target *models.SubOrder) error {
	if !order.IsPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, "order has not been paid")
	}
	if order.CancelStatus == enums.CancelStatusRequested {
		return pkgerrors.New(pkgerrors.CodeConflict, "a cancellation request is pending")
	}
	if order.RefundStatus != enums.RefundStatusNone {
		return pkgerrors.New(pkgerrors.CodeConflict, "a refund has already been requested")
	}
	if order.IsDelivered {
		return pkgerrors.New(pkgerrors.CodeConflict, "delivered orders cannot be refunded")
	}
	if len(SuccessfulSubOrders(order)) == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "no sub-order has completed")
	}
	if target != nil && target.Status != enums.OrderStatusSuccess {
		return pkgerrors.New(pkgerrors.CodeConflict, "sub-order has not completed").
			WithDetails(map[string]any{"subOrderId": target.ID, "status": target.Status})
	}
	return nil
}

func CanResolveRefund(order *models.TotalOrder, target *models.SubOrder) error {
	if order.RefundStatus != enums.RefundStatusRequested {
		return pkgerrors.New(pkgerrors.CodeConflict, "no refund request is pending")
	}
	if target != nil && target.RefundStatus != enums.RefundStatusRequested {
		return pkgerrors.New(pkgerrors.CodeConflict, "sub-order has no pending refund request")
	}
	return nil
}

func CanMarkProcessing(order *models.TotalOrder, sub *models.SubOrder) error {
	if !order.IsPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, "order has not been paid")
	}
	if order.CancelStatus == enums.CancelStatusRequested || order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is being cancelled")
	}
	if sub.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeConflict, "sub-order is not pending")
	}
	return nil
}

func CanConfirmDelivery(order *models.TotalOrder, sub *models.SubOrder) error {
	if !order.IsPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, "order has not been paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is cancelled")
	}
	if order.CancelStatus == enums.CancelStatusRequested {
		return pkgerrors.New(pkgerrors.CodeConflict, "a cancellation request is pending")
	}
	if sub.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeConflict, "sub-order is cancelled")
	}
	if sub.IsDelivered {
		return pkgerrors.New(pkgerrors.CodeConflict, "sub-order is already delivered")
	}
	return nil
}

// CanBuyAgain is true once the order has reached an end state.
func CanBuyAgain(order *models.TotalOrder) bool {
	return order.IsDelivered || order.Status == enums.OrderStatusCancelled
}

// SuccessfulSubOrders returns pointers into order.SubOrders with status success.
func SuccessfulSubOrders(order *models.TotalOrder) []*models.SubOrder {
	var out []*models.SubOrder
	for i := range order.SubOrders {
		if order.SubOrders[i].Status == enums.OrderStatusSuccess {
			out = append(out, &order.SubOrders[i])
		}
	}
	return out
}
