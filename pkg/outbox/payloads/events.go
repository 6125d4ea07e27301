package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a new checkout split across sellers.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      string          `json:"user_id"`
	SubOrderIDs []uuid.UUID     `json:"sub_order_ids"`
	SellerIDs   []string        `json:"seller_ids"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// OrderPaidEvent is emitted once per order when payment is recorded.
type OrderPaidEvent struct {
	OrderID   uuid.UUID             `json:"order_id"`
	Provider  enums.PaymentProvider `json:"provider"`
	PaymentID string                `json:"payment_id"`
	PaidAt    time.Time             `json:"paid_at"`
}

// CancellationEvent covers both the request and its resolution.
type CancellationEvent struct {
	OrderID      uuid.UUID                 `json:"order_id"`
	CancelStatus enums.CancelStatus        `json:"cancel_status"`
	Outcome      enums.CancellationOutcome `json:"outcome,omitempty"`
	Reason       string                    `json:"reason,omitempty"`
}

// RefundEvent covers both the request and its resolution.
type RefundEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	SubOrderIDs  []uuid.UUID        `json:"sub_order_ids"`
	RefundStatus enums.RefundStatus `json:"refund_status"`
	Reason       string             `json:"reason,omitempty"`
	Evidence     []string           `json:"evidence,omitempty"`
}

// SubOrderEvent is emitted when a seller moves or removes one sub-order.
type SubOrderEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	SubOrderID uuid.UUID         `json:"sub_order_id"`
	SellerID   string            `json:"seller_id"`
	Status     enums.OrderStatus `json:"status"`
}
