package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for total orders and sub-orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTotalOrder(ctx context.Context, order *models.TotalOrder, subOrders []models.SubOrder) error
	FindTotalOrder(ctx context.Context, id uuid.UUID) (*models.TotalOrder, error)
	FindSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	UpdateTotalOrder(ctx context.Context, order *models.TotalOrder, fields ...string) error
	UpdateSubOrder(ctx context.Context, sub *models.SubOrder, fields ...string) error
	DeleteSubOrder(ctx context.Context, id uuid.UUID, sellerID string) error
	ListByUser(ctx context.Context, userID string, params pagination.Params) (pagination.Page[models.TotalOrder], error)
	ListSubOrdersBySeller(ctx context.Context, sellerID string, params pagination.Params) (pagination.Page[models.SubOrder], error)
	ListRefundSubOrders(ctx context.Context, filter RefundFilter) ([]SubOrderWithOrder, error)
	ListSubOrdersNeedingAttention(ctx context.Context, since time.Time, limit int) ([]SubOrderWithOrder, error)
}

// CartClearer empties a customer's cart once their order is paid.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// SnapshotPublisher fans committed order state out to live subscribers.
type SnapshotPublisher interface {
	Publish(ctx context.Context, order *models.TotalOrder) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
