package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateTotalOrder inserts the order and its sub-orders. Callers run it inside
// a transaction so the pair is atomic.
func (r *repository) CreateTotalOrder(ctx context.Context, order *models.TotalOrder, subOrders []models.SubOrder) error {
	if err := r.db.WithContext(ctx).Omit("SubOrders").Create(order).Error; err != nil {
		return err
	}
	for i := range subOrders {
		subOrders[i].TotalOrderID = order.ID
	}
	if len(subOrders) > 0 {
		if err := r.db.WithContext(ctx).Create(&subOrders).Error; err != nil {
			return err
		}
	}
	order.SubOrders = subOrders
	return nil
}

func (r *repository) FindTotalOrder(ctx context.Context, id uuid.UUID) (*models.TotalOrder, error) {
	var order models.TotalOrder
	err := r.db.WithContext(ctx).
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB {
			return db.Order("seller_id ASC").Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	var sub models.SubOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateTotalOrder writes the named columns if the row still carries the
// version the caller loaded, then bumps the version.
func (r *repository) UpdateTotalOrder(ctx context.Context, order *models.TotalOrder, fields ...string) error {
	expected := order.Version
	order.Version = expected + 1
	res := r.db.WithContext(ctx).
		Model(order).
		Where("version = ?", expected).
		Select(versionedColumns(fields)).
		Updates(order)
	if res.Error != nil {
		order.Version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		order.Version = expected
		return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	}
	return nil
}

func (r *repository) UpdateSubOrder(ctx context.Context, sub *models.SubOrder, fields ...string) error {
	expected := sub.Version
	sub.Version = expected + 1
	res := r.db.WithContext(ctx).
		Model(sub).
		Where("version = ?", expected).
		Select(versionedColumns(fields)).
		Updates(sub)
	if res.Error != nil {
		sub.Version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		sub.Version = expected
		return pkgerrors.New(pkgerrors.CodeConflict, "sub-order was modified concurrently")
	}
	return nil
}

func versionedColumns(fields []string) []string {
	cols := make([]string, 0, len(fields)+2)
	cols = append(cols, fields...)
	return append(cols, "version", "updated_at")
}

func (r *repository) DeleteSubOrder(ctx context.Context, id uuid.UUID, sellerID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND seller_id = ?", id, sellerID).
		Delete(&models.SubOrder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID string, params pagination.Params) (pagination.Page[models.TotalOrder], error) {
	query := r.db.WithContext(ctx).
		Model(&models.TotalOrder{}).
		Preload("SubOrders", func(db *gorm.DB) *gorm.DB {
			return db.Order("seller_id ASC")
		}).
		Where("user_id = ?", userID)

	query, err := applyCursor(query, "", params.Cursor)
	if err != nil {
		return pagination.Page[models.TotalOrder]{}, err
	}

	var rows []models.TotalOrder
	if err := query.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return pagination.Page[models.TotalOrder]{}, err
	}
	return pagination.BuildPage(rows, params.Limit, func(o models.TotalOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (r *repository) ListSubOrdersBySeller(ctx context.Context, sellerID string, params pagination.Params) (pagination.Page[models.SubOrder], error) {
	query := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Where("seller_id = ?", sellerID)

	query, err := applyCursor(query, "", params.Cursor)
	if err != nil {
		return pagination.Page[models.SubOrder]{}, err
	}

	var rows []models.SubOrder
	if err := query.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return pagination.Page[models.SubOrder]{}, err
	}
	return pagination.BuildPage(rows, params.Limit, func(s models.SubOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	}), nil
}

// applyCursor adds the keyset predicate and ordering over (created_at DESC, id DESC).
func applyCursor(query *gorm.DB, table, raw string) (*gorm.DB, error) {
	prefix := ""
	if table != "" {
		prefix = table + "."
	}
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where(
			"("+prefix+"created_at < ? OR ("+prefix+"created_at = ? AND "+prefix+"id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	return query.Order(prefix + "created_at DESC").Order(prefix + "id DESC"), nil
}

func (r *repository) ListRefundSubOrders(ctx context.Context, filter RefundFilter) ([]SubOrderWithOrder, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Select("sub_orders.*").
		Joins("JOIN total_orders ON total_orders.id = sub_orders.total_order_id")

	if filter.Status != "" {
		query = query.Where("sub_orders.refund_status = ?", filter.Status)
	} else {
		query = query.Where("sub_orders.refund_status <> ?", enums.RefundStatusNone)
	}
	if filter.SellerID != "" {
		query = query.Where("sub_orders.seller_id = ?", filter.SellerID)
	}
	if filter.UserID != "" {
		query = query.Where("total_orders.user_id = ?", filter.UserID)
	}

	var subs []models.SubOrder
	err := query.
		Order("sub_orders.updated_at DESC").
		Order("sub_orders.id ASC").
		Limit(pagination.NormalizeLimit(filter.Limit)).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return r.attachOrders(ctx, subs)
}

// ListSubOrdersNeedingAttention returns sub-orders touched since the cutoff
// that a seller should hear about: paid but not started, cancellation
// pending on the parent order, or refund requested.
func (r *repository) ListSubOrdersNeedingAttention(ctx context.Context, since time.Time, limit int) ([]SubOrderWithOrder, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	var subs []models.SubOrder
	err := r.db.WithContext(ctx).
		Model(&models.SubOrder{}).
		Select("sub_orders.*").
		Joins("JOIN total_orders ON total_orders.id = sub_orders.total_order_id").
		Where("(sub_orders.updated_at >= ? OR total_orders.updated_at >= ?)", since, since).
		Where(
			"((total_orders.is_paid = ? AND sub_orders.status = ? AND total_orders.cancel_status = ?) OR total_orders.cancel_status = ? OR sub_orders.refund_status = ?)",
			true, enums.OrderStatusPending, enums.CancelStatusNone, enums.CancelStatusRequested, enums.RefundStatusRequested,
		).
		Order("sub_orders.updated_at ASC").
		Order("sub_orders.id ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return r.attachOrders(ctx, subs)
}

func (r *repository) attachOrders(ctx context.Context, subs []models.SubOrder) ([]SubOrderWithOrder, error) {
	if len(subs) == 0 {
		return []SubOrderWithOrder{}, nil
	}
	ids := make([]uuid.UUID, 0, len(subs))
	seen := make(map[uuid.UUID]struct{}, len(subs))
	for _, sub := range subs {
		if _, ok := seen[sub.TotalOrderID]; ok {
			continue
		}
		seen[sub.TotalOrderID] = struct{}{}
		ids = append(ids, sub.TotalOrderID)
	}

	var orders []models.TotalOrder
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.TotalOrder, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
	}

	rows := make([]SubOrderWithOrder, 0, len(subs))
	for _, sub := range subs {
		order, ok := byID[sub.TotalOrderID]
		if !ok {
			continue
		}
		rows = append(rows, SubOrderWithOrder{Order: order, SubOrder: sub})
	}
	return rows, nil
}
