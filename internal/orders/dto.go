package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Actor is the authenticated caller an operation runs on behalf of.
type Actor struct {
	UserID string
	Role   enums.Role
}

// SystemActor is used for transitions driven by provider callbacks.
var SystemActor = Actor{UserID: "system", Role: enums.RoleAdmin}

// CreateOrderInput is the checkout submission. Items come from the cart
// snapshot; line ids are assigned by the engine.
type CreateOrderInput struct {
	UserID   string
	Billing  models.BillingInfo
	Items    []models.LineItem
	Shipping decimal.Decimal
	Tax      decimal.Decimal
}

// CancellationInput requests cancellation of a paid order.
type CancellationInput struct {
	OrderID uuid.UUID
	Reason  string
	Actor   Actor
}

// CancellationResult reports the updated order and whether the request was
// approved immediately.
type CancellationResult struct {
	Order   *models.TotalOrder
	Outcome enums.CancellationOutcome
}

// RefundInput requests a refund for one successful sub-order, or for every
// successful sub-order when SubOrderID is nil.
type RefundInput struct {
	OrderID    uuid.UUID
	SubOrderID *uuid.UUID
	Reason     string
	Evidence   []string
	Actor      Actor
}

// ResolutionInput carries a seller or admin verdict.
type ResolutionInput struct {
	OrderID    uuid.UUID
	SubOrderID *uuid.UUID
	Action     enums.ResolutionAction
	Actor      Actor
}

// RefundFilter scopes the dispute scan.
type RefundFilter struct {
	SellerID string
	UserID   string
	Status   enums.RefundStatus
	Limit    int
}

// SubOrderWithOrder pairs a sub-order with its parent order (sub-orders not preloaded).
type SubOrderWithOrder struct {
	Order    models.TotalOrder
	SubOrder models.SubOrder
}

// OrderSnapshot is a full-state replacement delivered to feed subscribers.
type OrderSnapshot struct {
	Order       models.TotalOrder `json:"order"`
	PublishedAt time.Time         `json:"publishedAt"`
}
