// Package rolegate projects the lifecycle guards onto the actions a viewer
// should be offered. The engine stays authoritative; every check here calls
// the same guard the engine runs before the matching mutation.
package rolegate

import (
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// VisibleActions lists, in lexical order, the actions actor may take on
// order. sub narrows the view to one sub-order and may be nil.
func VisibleActions(order *models.TotalOrder, sub *models.SubOrder, actor orders.Actor) []enums.Action {
	if order == nil {
		return []enums.Action{}
	}
	if sub != nil {
		owned, ok := order.SubOrderByID(sub.ID)
		if !ok {
			return []enums.Action{}
		}
		sub = owned
	}

	var actions []enums.Action
	switch actor.Role {
	case enums.RoleCustomer:
		actions = customerActions(order, sub, actor)
	case enums.RoleSeller:
		actions = sellerActions(order, sub, actor)
	case enums.RoleAdmin:
		actions = adminActions(order, sub)
	}
	if actions == nil {
		return []enums.Action{}
	}
	enums.SortActions(actions)
	return actions
}

func customerActions(order *models.TotalOrder, sub *models.SubOrder, actor orders.Actor) []enums.Action {
	if !orders.OwnsOrder(order, actor) {
		return nil
	}
	var out []enums.Action
	if orders.CanRequestCancellation(order) == nil {
		out = append(out, enums.ActionCancel)
	}
	if orders.CanRequestRefund(order, sub) == nil {
		out = append(out, enums.ActionRefund)
	}
	if orders.CanBuyAgain(order) {
		out = append(out, enums.ActionBuyAgain)
	}
	return out
}

func sellerActions(order *models.TotalOrder, sub *models.SubOrder, actor orders.Actor) []enums.Action {
	if !order.HasSeller(actor.UserID) {
		return nil
	}
	var out []enums.Action
	if orders.CanResolveCancellation(order) == nil {
		out = append(out, enums.ActionApproveCancellation, enums.ActionRejectCancellation)
	}

	if sub == nil {
		for i := range order.SubOrders {
			own := &order.SubOrders[i]
			if orders.OwnsSubOrder(own, actor) && orders.CanResolveRefund(order, own) == nil {
				out = append(out, enums.ActionApproveRefund, enums.ActionRejectRefund)
				break
			}
		}
		return out
	}

	if !orders.OwnsSubOrder(sub, actor) {
		return out
	}
	if orders.CanResolveRefund(order, sub) == nil {
		out = append(out, enums.ActionApproveRefund, enums.ActionRejectRefund)
	}
	if orders.CanConfirmDelivery(order, sub) == nil {
		out = append(out, enums.ActionConfirmDelivery)
	}
	return out
}

func adminActions(order *models.TotalOrder, sub *models.SubOrder) []enums.Action {
	var out []enums.Action
	if orders.CanResolveCancellation(order) == nil {
		out = append(out, enums.ActionApproveCancellation, enums.ActionRejectCancellation)
	}
	if orders.CanResolveRefund(order, sub) == nil {
		out = append(out, enums.ActionApproveRefund, enums.ActionRejectRefund)
	}
	if sub != nil && orders.CanConfirmDelivery(order, sub) == nil {
		out = append(out, enums.ActionConfirmDelivery)
	}
	return out
}
