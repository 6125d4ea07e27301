package orders

import (
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/rolegate"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// orderView is an order together with the actions the caller may take on it.
type orderView struct {
	Order           *models.TotalOrder        `json:"order"`
	Actions         []enums.Action            `json:"actions"`
	SubOrderActions map[string][]enums.Action `json:"subOrderActions"`
}

func newOrderView(order *models.TotalOrder, actor internalorders.Actor) orderView {
	view := orderView{
		Order:           order,
		Actions:         rolegate.VisibleActions(order, nil, actor),
		SubOrderActions: make(map[string][]enums.Action, len(order.SubOrders)),
	}
	for i := range order.SubOrders {
		sub := &order.SubOrders[i]
		view.SubOrderActions[sub.ID.String()] = rolegate.VisibleActions(order, sub, actor)
	}
	return view
}

type cancellationView struct {
	orderView
	Outcome enums.CancellationOutcome `json:"outcome"`
}
