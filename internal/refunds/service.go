package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/sellers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RefundDispute is the read-model row for one sub-order with a refund on it.
type RefundDispute struct {
	OrderID      uuid.UUID          `json:"orderId"`
	SubOrderID   uuid.UUID          `json:"subOrderId"`
	SellerID     string             `json:"sellerId"`
	StoreName    string             `json:"storeName"`
	CustomerID   string             `json:"customerId"`
	CustomerName string             `json:"customerName"`
	Reason       string             `json:"reason"`
	Evidence     []string           `json:"evidence"`
	RefundStatus enums.RefundStatus `json:"refundStatus"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// DisputeFilter narrows the dispute listing. Scope comes from the actor.
type DisputeFilter struct {
	Status enums.RefundStatus
	Limit  int
}

// Service is the refund workflow on top of the lifecycle engine.
type Service interface {
	ListDisputes(ctx context.Context, actor orders.Actor, filter DisputeFilter) ([]RefundDispute, error)
	ResolveRefundDispute(ctx context.Context, orderID, subOrderID uuid.UUID, action enums.ResolutionAction, actor orders.Actor) (*RefundDispute, error)
}

type disputeSource interface {
	ListRefundSubOrders(ctx context.Context, filter orders.RefundFilter) ([]orders.SubOrderWithOrder, error)
}

type refundEngine interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.TotalOrder, error)
	ResolveRefund(ctx context.Context, input orders.ResolutionInput) (*models.TotalOrder, error)
}

type sellerDirectory interface {
	GetMany(ctx context.Context, sellerIDs []string) (map[string]sellers.Info, error)
}

// ServiceParams groups the workflow's collaborators.
type ServiceParams struct {
	Source  disputeSource
	Engine  refundEngine
	Sellers sellerDirectory
	Logger  *logger.Logger
}

type service struct {
	source  disputeSource
	engine  refundEngine
	sellers sellerDirectory
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Source == nil {
		return nil, fmt.Errorf("dispute source required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller directory required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{source: params.Source, engine: params.Engine, sellers: params.Sellers, logg: logg}, nil
}

// ListDisputes scopes by role: sellers see their own sub-orders, customers
// their own orders, admins everything.
func (s *service) ListDisputes(ctx context.Context, actor orders.Actor, filter DisputeFilter) ([]RefundDispute, error) {
	if err := orders.RequireRole(actor, enums.RoleCustomer, enums.RoleSeller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown refund status").
			WithDetails(map[string]any{"status": filter.Status})
	}

	query := orders.RefundFilter{Status: filter.Status, Limit: filter.Limit}
	switch actor.Role {
	case enums.RoleSeller:
		query.SellerID = actor.UserID
	case enums.RoleCustomer:
		query.UserID = actor.UserID
	}

	rows, err := s.source.ListRefundSubOrders(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refund disputes")
	}
	names := s.storeNames(ctx, lo.Map(rows, func(row orders.SubOrderWithOrder, _ int) string {
		return row.SubOrder.SellerID
	}))
	return lo.Map(rows, func(row orders.SubOrderWithOrder, _ int) RefundDispute {
		return toDispute(row.Order, row.SubOrder, names)
	}), nil
}

// ResolveRefundDispute checks the sub-order belongs to the order and to the
// acting seller before handing the verdict to the engine.
func (s *service) ResolveRefundDispute(ctx context.Context, orderID, subOrderID uuid.UUID, action enums.ResolutionAction, actor orders.Actor) (*RefundDispute, error) {
	if err := orders.RequireRole(actor, enums.RoleSeller, enums.RoleAdmin); err != nil {
		return nil, err
	}
	order, err := s.engine.GetOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	sub, ok := order.SubOrderByID(subOrderID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found on this order")
	}
	if actor.Role == enums.RoleSeller && sub.SellerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodePermission, "refund dispute belongs to another seller")
	}

	updated, err := s.engine.ResolveRefund(ctx, orders.ResolutionInput{
		OrderID:    orderID,
		SubOrderID: &subOrderID,
		Action:     action,
		Actor:      actor,
	})
	if err != nil {
		return nil, err
	}
	resolved, ok := updated.SubOrderByID(subOrderID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "resolved sub-order missing from order")
	}
	names := s.storeNames(ctx, []string{resolved.SellerID})
	dispute := toDispute(*updated, *resolved, names)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":      orderID.String(),
		"sub_order_id":  subOrderID.String(),
		"refund_status": string(dispute.RefundStatus),
	}), "refund dispute resolved")
	return &dispute, nil
}

// storeNames degrades to raw seller ids when the directory is unavailable.
func (s *service) storeNames(ctx context.Context, sellerIDs []string) map[string]sellers.Info {
	if len(sellerIDs) == 0 {
		return nil
	}
	names, err := s.sellers.GetMany(ctx, sellerIDs)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "seller directory unavailable, showing seller ids")
		return nil
	}
	return names
}

func toDispute(order models.TotalOrder, sub models.SubOrder, names map[string]sellers.Info) RefundDispute {
	storeName := sub.SellerID
	if info, ok := names[sub.SellerID]; ok {
		storeName = info.StoreName
	}
	reason := lo.FromPtr(sub.RefundReason)
	if reason == "" {
		reason = lo.FromPtr(order.RefundReason)
	}
	evidence := sub.RefundEvidence
	if len(evidence) == 0 {
		evidence = order.RefundEvidence
	}
	if evidence == nil {
		evidence = []string{}
	}
	return RefundDispute{
		OrderID:      order.ID,
		SubOrderID:   sub.ID,
		SellerID:     sub.SellerID,
		StoreName:    storeName,
		CustomerID:   order.UserID,
		CustomerName: order.BillingInfo.Name,
		Reason:       reason,
		Evidence:     evidence,
		RefundStatus: sub.RefundStatus,
		Subtotal:     sub.Subtotal,
		UpdatedAt:    sub.UpdatedAt,
	}
}
