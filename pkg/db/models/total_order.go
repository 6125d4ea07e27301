package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// BillingInfo is captured at checkout; every field is required.
type BillingInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// LineItem is one cart line frozen into the order snapshot.
type LineItem struct {
	LineID    string          `json:"lineId"`
	ProductID string          `json:"productId"`
	SellerID  string          `json:"sellerId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price x quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PaymentResult is the provider-normalized payment record.
type PaymentResult struct {
	Provider   enums.PaymentProvider `json:"provider"`
	ID         string                `json:"id"`
	Status     string                `json:"status"`
	UpdateTime time.Time             `json:"updateTime"`
	PayerEmail string                `json:"payerEmail,omitempty"`
}

// TotalOrder is the customer-facing aggregate for one checkout.
type TotalOrder struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID            string             `gorm:"column:user_id;type:text;not null;index" json:"userId"`
	BillingInfo       BillingInfo        `gorm:"column:billing_info;type:jsonb;serializer:json;not null" json:"billingInfo"`
	CartItemsSnapshot []LineItem         `gorm:"column:cart_items_snapshot;type:jsonb;serializer:json;not null" json:"cartItemsSnapshot"`
	TotalAmount       decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null" json:"totalAmount"`
	TotalShipping     decimal.Decimal    `gorm:"column:total_shipping;type:numeric(12,2);not null" json:"totalShipping"`
	TotalTax          decimal.Decimal    `gorm:"column:total_tax;type:numeric(12,2);not null" json:"totalTax"`
	TotalPrice        decimal.Decimal    `gorm:"column:total_price;type:numeric(12,2);not null" json:"totalPrice"`
	IsPaid            bool               `gorm:"column:is_paid;not null" json:"isPaid"`
	PaidAt            *time.Time         `gorm:"column:paid_at" json:"paidAt,omitempty"`
	IsDelivered       bool               `gorm:"column:is_delivered;not null" json:"isDelivered"`
	DeliveredAt       *time.Time         `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	Status            enums.OrderStatus  `gorm:"column:status;type:text;not null" json:"status"`
	CancelStatus      enums.CancelStatus `gorm:"column:cancel_status;type:text;not null" json:"cancelStatus"`
	CancelReason      *string            `gorm:"column:cancel_reason" json:"cancelReason,omitempty"`
	CancelledAt       *time.Time         `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	RefundStatus      enums.RefundStatus `gorm:"column:refund_status;type:text;not null" json:"refundStatus"`
	RefundReason      *string            `gorm:"column:refund_reason" json:"refundReason,omitempty"`
	RefundEvidence    []string           `gorm:"column:refund_evidence;type:jsonb;serializer:json" json:"refundEvidence,omitempty"`
	PaymentResult     *PaymentResult     `gorm:"column:payment_result;type:jsonb;serializer:json" json:"paymentResult,omitempty"`
	Version           int                `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt         time.Time          `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	SubOrders []SubOrder `gorm:"foreignKey:TotalOrderID" json:"subOrders,omitempty"`
}

func (TotalOrder) TableName() string { return "total_orders" }

func (o *TotalOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return nil
}

// SubOrderByID returns the loaded sub-order with the given id.
func (o *TotalOrder) SubOrderByID(id uuid.UUID) (*SubOrder, bool) {
	for i := range o.SubOrders {
		if o.SubOrders[i].ID == id {
			return &o.SubOrders[i], true
		}
	}
	return nil, false
}

// HasSeller reports whether any loaded sub-order belongs to sellerID.
func (o *TotalOrder) HasSeller(sellerID string) bool {
	for _, sub := range o.SubOrders {
		if sub.SellerID == sellerID {
			return true
		}
	}
	return false
}
