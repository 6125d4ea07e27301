package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Notification is an in-app alert for a seller about one of their sub-orders.
// A given (seller, sub-order, type) alert is raised at most once.
type Notification struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SellerID   string          `gorm:"column:seller_id;type:text;not null;uniqueIndex:ux_notifications_alert,priority:1" json:"sellerId"`
	SubOrderID uuid.UUID       `gorm:"column:sub_order_id;type:uuid;not null;uniqueIndex:ux_notifications_alert,priority:2" json:"subOrderId"`
	Type       enums.AlertType `gorm:"column:type;type:text;not null;uniqueIndex:ux_notifications_alert,priority:3" json:"type"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null" json:"orderId"`
	Title      string          `gorm:"column:title;type:text;not null" json:"title"`
	Message    string          `gorm:"column:message;type:text;not null" json:"message"`
	ReadAt     *time.Time      `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}
