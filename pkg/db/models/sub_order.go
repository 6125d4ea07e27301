package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SubOrder is the per-seller partition of a TotalOrder.
type SubOrder struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TotalOrderID   uuid.UUID          `gorm:"column:total_order_id;type:uuid;not null;index" json:"totalOrderId"`
	SellerID       string             `gorm:"column:seller_id;type:text;not null;index" json:"sellerId"`
	Items          []LineItem         `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	Subtotal       decimal.Decimal    `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	Status         enums.OrderStatus  `gorm:"column:status;type:text;not null" json:"status"`
	IsDelivered    bool               `gorm:"column:is_delivered;not null" json:"isDelivered"`
	DeliveredAt    *time.Time         `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	RefundStatus   enums.RefundStatus `gorm:"column:refund_status;type:text;not null" json:"refundStatus"`
	RefundReason   *string            `gorm:"column:refund_reason" json:"refundReason,omitempty"`
	RefundEvidence []string           `gorm:"column:refund_evidence;type:jsonb;serializer:json" json:"refundEvidence,omitempty"`
	Version        int                `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt      time.Time          `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (SubOrder) TableName() string { return "sub_orders" }

func (s *SubOrder) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
