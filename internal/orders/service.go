package orders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service is the order lifecycle engine. Every mutation loads the order,
// checks the guard, writes with compare-and-set and queues its outbox event
// inside one transaction.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.TotalOrder, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.TotalOrder, error)
	ListOrders(ctx context.Context, actor Actor, params pagination.Params) (pagination.Page[models.TotalOrder], error)
	RecordPayment(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, actor Actor) (*models.TotalOrder, error)
	RequestCancellation(ctx context.Context, input CancellationInput) (*CancellationResult, error)
	ResolveCancellation(ctx context.Context, input ResolutionInput) (*models.TotalOrder, error)
	RequestRefund(ctx context.Context, input RefundInput) (*models.TotalOrder, error)
	ResolveRefund(ctx context.Context, input ResolutionInput) (*models.TotalOrder, error)
	MarkProcessing(ctx context.Context, subOrderID uuid.UUID, actor Actor) (*models.TotalOrder, error)
	ConfirmDelivery(ctx context.Context, subOrderID uuid.UUID, actor Actor) (*models.TotalOrder, error)
	DeleteSubOrder(ctx context.Context, subOrderID uuid.UUID, actor Actor) error
	ListSellerSubOrders(ctx context.Context, actor Actor, params pagination.Params) (pagination.Page[models.SubOrder], error)
}

// ServiceParams bundles the engine's collaborators.
type ServiceParams struct {
	Repo               Repository
	TransactionRunner  txRunner
	Outbox             outbox.Emitter
	Cart               CartClearer
	Feed               SnapshotPublisher
	Metrics            *metrics.OrderMetrics
	Logger             *logger.Logger
	CancellationPolicy enums.CancellationPolicy
	CancellationWindow time.Duration
	Clock              func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	cart    CartClearer
	feed    SnapshotPublisher
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	policy  enums.CancellationPolicy
	window  time.Duration
	clock   func() time.Time
}

// NewService builds the lifecycle engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	policy := params.CancellationPolicy
	if policy == "" {
		policy = enums.CancellationPolicyAutoWithinWindow
	}
	window := params.CancellationWindow
	if window <= 0 {
		window = DefaultCancellationWindow
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TransactionRunner,
		outbox:  params.Outbox,
		cart:    params.Cart,
		feed:    params.Feed,
		metrics: params.Metrics,
		logg:    logg,
		policy:  policy,
		window:  window,
		clock:   clock,
	}, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.TotalOrder, error) {
	const operation = "create_order"
	if err := validateCreateInput(input); err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	items := AssignLineIDs(input.Items)
	subOrders := PartitionBySeller(items)
	if err := VerifyPartition(items, subOrders); err != nil {
		return nil, err
	}
	totals := ComputeTotals(items, input.Shipping, input.Tax)

	now := s.now()
	order := &models.TotalOrder{
		UserID:            input.UserID,
		BillingInfo:       trimBilling(input.Billing),
		CartItemsSnapshot: items,
		TotalAmount:       totals.Amount,
		TotalShipping:     totals.Shipping,
		TotalTax:          totals.Tax,
		TotalPrice:        totals.Price,
		Status:            enums.OrderStatusPending,
		CancelStatus:      enums.CancelStatusNone,
		RefundStatus:      enums.RefundStatusNone,
		CreatedAt:         now,
	}
	for i := range subOrders {
		subOrders[i].CreatedAt = now
	}

	actor := Actor{UserID: input.UserID, Role: enums.RoleCustomer}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateTotalOrder(ctx, order, subOrders); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.emit(ctx, tx, actor, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateTotalOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				SubOrderIDs: lo.Map(order.SubOrders, func(sub models.SubOrder, _ int) uuid.UUID { return sub.ID }),
				SellerIDs:   lo.Map(order.SubOrders, func(sub models.SubOrder, _ int) string { return sub.SellerID }),
				TotalPrice:  order.TotalPrice,
			},
		})
	})
	if err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	s.committed(ctx, operation, "", order, actor)
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.TotalOrder, error) {
	order, err := s.repo.FindTotalOrder(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order not found")
	}
	if !CanView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodePermission, "order belongs to another account")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, actor Actor, params pagination.Params) (pagination.Page[models.TotalOrder], error) {
	if err := RequireRole(actor, enums.RoleCustomer); err != nil {
		return pagination.Page[models.TotalOrder]{}, err
	}
	page, err := s.repo.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return pagination.Page[models.TotalOrder]{}, storeError(err, "list orders")
	}
	return page, nil
}

// RecordPayment marks the order paid. The customer's cart is cleared after
// commit; a failure there is logged and does not fail the payment.
func (s *service) RecordPayment(ctx context.Context, orderID uuid.UUID, result models.PaymentResult, actor Actor) (*models.TotalOrder, error) {
	order, err := s.mutateOrder(ctx, "record_payment", orderID, actor, func(repo Repository, order *models.TotalOrder) ([]outbox.DomainEvent, error) {
		if err := CanRecordPayment(order); err != nil {
			return nil, err
		}
		now := s.now()
		if result.UpdateTime.IsZero() {
			result.UpdateTime = now
		}
		order.IsPaid = true
		order.PaidAt = &now
		order.PaymentResult = &result
		if err := repo.UpdateTotalOrder(ctx, order, "is_paid", "paid_at", "payment_result"); err != nil {
			return nil, storeError(err, "record payment")
		}
		return []outbox.DomainEvent{{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateTotalOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:   order.ID,
				Provider:  result.Provider,
				PaymentID: result.ID,
				PaidAt:    now,
			},
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cart.Clear(ctx, order.UserID); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "failed to clear cart after payment", err)
	}
	return order, nil
}

func (s *service) RequestCancellation(ctx context.Context, input CancellationInput) (*CancellationResult, error) {
	if err := RequireRole(input.Actor, enums.RoleCustomer); err != nil {
		s.metrics.Rejected("request_cancellation", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)

	var outcome enums.CancellationOutcome
	order, err := s.mutateOrder(ctx, "request_cancellation", input.OrderID, input.Actor, func(repo Repository, order *models.TotalOrder) ([]outbox.DomainEvent, error) {
		if !OwnsOrder(order, input.Actor) {
			return nil, pkgerrors.New(pkgerrors.CodePermission, "order belongs to another account")
		}
		if err := CanRequestCancellation(order); err != nil {
			return nil, err
		}

		now := s.now()
		outcome = DecideCancellation(s.policy, s.window, order.CreatedAt, now, order.SubOrders)
		if reason != "" {
			order.CancelReason = &reason
		}

		events := []outbox.DomainEvent{{
			EventType:     enums.EventCancellationRequested,
			AggregateType: enums.AggregateTotalOrder,
			AggregateID:   order.ID,
			Data: payloads.CancellationEvent{
				OrderID:      order.ID,
				CancelStatus: enums.CancelStatusRequested,
				Outcome:      outcome,
				Reason:       reason,
			},
		}}

		if outcome == enums.CancellationAutoApproved {
			if err := cancelOrder(ctx, repo, order, now); err != nil {
				return nil, err
			}
			events = append(events, cancellationResolvedEvent(order, outcome))
			return events, nil
		}

		order.CancelStatus = enums.CancelStatusRequested
		if err := repo.UpdateTotalOrder(ctx, order, "cancel_status", "cancel_reason"); err != nil {
			return nil, storeError(err, "request cancellation")
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return &CancellationResult{Order: order, Outcome: outcome}, nil
}

func (s *service) ResolveCancellation(ctx context.Context, input ResolutionInput) (*models.TotalOrder, error) {
	if err := validateResolution(input); err != nil {
		s.metrics.Rejected("resolve_cancellation", string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	return s.mutateOrder(ctx, "resolve_cancellation", input.OrderID, input.Actor, func(repo Repository, order *models.TotalOrder) ([]outbox.DomainEvent, error) {
		if input.Actor.Role == enums.RoleSeller && !order.HasSeller(input.Actor.UserID) {
			return nil, pkgerrors.New(pkgerrors.CodePermission, "seller has no sub-order in this order")
		}
		if err := CanResolveCancellation(order); err != nil {
			return nil, err
		}

		if input.Action == enums.ResolutionApprove {
			if err := cancelOrder(ctx, repo, order, s.now()); err != nil {
				return nil, err
			}
		} else {
			order.CancelStatus = enums.CancelStatusRejected
			if err := repo.UpdateTotalOrder(ctx, order, "cancel_status"); err != nil {
				return nil, storeError(err, "reject cancellation")
			}
		}
		return []outbox.DomainEvent{cancellationResolvedEvent(order, "")}, nil
	})
}

// cancelOrder moves the order and every sub-order to cancelled.
func cancelOrder(ctx context.Context, repo Repository, order *models.TotalOrder, now time.Time) error {
	for i := range order.SubOrders {
		sub := &order.SubOrders[i]
		if sub.Status == enums.OrderStatusCancelled {
			continue
		}
		sub.Status = enums.OrderStatusCancelled
		if err := repo.UpdateSubOrder(ctx, sub, "status"); err != nil {
			return storeError(err, "cancel sub-order")
		}
	}
	order.Status = enums.OrderStatusCancelled
	order.CancelStatus = enums.CancelStatusApproved
	order.CancelledAt = &now
	if err := repo.UpdateTotalOrder(ctx, order, "status", "cancel_status", "cancel_reason", "cancelled_at"); err != nil {
		return storeError(err, "cancel order")
	}
	return nil
}

func cancellationResolvedEvent(order *models.TotalOrder, outcome enums.CancellationOutcome) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventCancellationResolved,
		AggregateType: enums.AggregateTotalOrder,
		AggregateID:   order.ID,
		Data: payloads.CancellationEvent{
			OrderID:      order.ID,
			CancelStatus: order.CancelStatus,
			Outcome:      outcome,
		},
	}
}

func (s *service) RequestRefund(ctx context.Context, input RefundInput) (*models.TotalOrder, error) {
	const operation = "request_refund"
	if err := RequireRole(input.Actor, enums.RoleCustomer); err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		err := pkgerrors.New(pkgerrors.CodeValidation, "refund reason is required")
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	evidence, err := normalizeEvidence(input.Evidence)
	if err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	return s.mutateOrder(ctx, operation, input.OrderID, input.Actor, func(repo Repository, order *models.TotalOrder) ([]outbox.DomainEvent, error) {
		if !OwnsOrder(order, input.Actor) {
			return nil, pkgerrors.New(pkgerrors.CodePermission, "order belongs to another account")
		}

		var target *models.SubOrder
		if input.SubOrderID != nil {
			sub, ok := order.SubOrderByID(*input.SubOrderID)
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
			}
			target = sub
		}
		if err := CanRequestRefund(order, target); err != nil {
			return nil, err
		}

		targets := []*models.SubOrder{target}
		if target == nil {
			targets = SuccessfulSubOrders(order)
		}
		ids := make([]uuid.UUID, 0, len(targets))
		for _, sub := range targets {
			sub.RefundStatus = enums.RefundStatusRequested
			sub.RefundReason = &reason
			sub.RefundEvidence = evidence
			if err := repo.UpdateSubOrder(ctx, sub, "refund_status", "refund_reason", "refund_evidence"); err != nil {
				return nil, storeError(err, "request refund")
			}
			ids = append(ids, sub.ID)
		}

		order.RefundStatus = enums.RefundStatusRequested
		order.RefundReason = &reason
		order.RefundEvidence = evidence
		if err := repo.UpdateTotalOrder(ctx, order, "refund_status", "refund_reason", "refund_evidence"); err != nil {
			return nil, storeError(err, "request refund")
		}
		return []outbox.DomainEvent{{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateTotalOrder,
			AggregateID:   order.ID,
			Data: payloads.RefundEvent{
				OrderID:      order.ID,
				SubOrderIDs:  ids,
				RefundStatus: enums.RefundStatusRequested,
				Reason:       reason,
				Evidence:     evidence,
			},
		}}, nil
	})
}

// ResolveRefund applies a verdict to the targeted sub-order, or to every
// sub-order with a pending request the actor may act on, then recomputes the
// order-level refund status.
func (s *service) ResolveRefund(ctx context.Context, input ResolutionInput) (*models.TotalOrder, error) {
	if err := validateResolution(input); err != nil {
		s.metrics.Rejected("resolve_refund", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	next := enums.RefundStatusRefunded
	if input.Action == enums.ResolutionReject {
		next = enums.RefundStatusRejected
	}

	return s.mutateOrder(ctx, "resolve_refund", input.OrderID, input.Actor, func(repo Repository, order *models.TotalOrder) ([]outbox.DomainEvent, error) {
		var targets []*models.SubOrder
		if input.SubOrderID != nil {
			sub, ok := order.SubOrderByID(*input.SubOrderID)
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
			}
			if input.Actor.Role == enums.RoleSeller && !OwnsSubOrder(sub, input.Actor) {
				return nil, pkgerrors.New(pkgerrors.CodePermission, "sub-order belongs to another seller")
			}
			if err := CanResolveRefund(order, sub); err != nil {
				return nil, err
			}
			targets = []*models.SubOrder{sub}
		} else {
			if input.Actor.Role == enums.RoleSeller && !order.HasSeller(input.Actor.UserID) {
				return nil, pkgerrors.New(pkgerrors.CodePermission, "seller has no sub-order in this order")
			}
			if err := CanResolveRefund(order, nil); err != nil {
				return nil, err
			}
			for i := range order.SubOrders {
				sub := &order.SubOrders[i]
				if sub.RefundStatus != enums.RefundStatusRequested {
					continue
				}
				if input.Actor.Role == enums.RoleSeller && !OwnsSubOrder(sub, input.Actor) {
					continue
				}
				targets = append(targets, sub)
			}
			if len(targets) == 0 {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "no refund request pending for this seller")
			}
		}

		ids := make([]uuid.UUID, 0, len(targets))
		for _, sub := range targets {
			sub.RefundStatus = next
			if err := repo.UpdateSubOrder(ctx, sub, "refund_status"); err != nil {
				return nil, storeError(err, "resolve refund")
			}
			ids = append(ids, sub.ID)
		}

		order.RefundStatus = AggregateRefundStatus(order.SubOrders)
		if err := repo.UpdateTotalOrder(ctx, order, "refund_status"); err != nil {
			return nil, storeError(err, "resolve refund")
		}
		return []outbox.DomainEvent{{
			EventType:     enums.EventRefundResolved,
			AggregateType: enums.AggregateTotalOrder,
			AggregateID:   order.ID,
			Data: payloads.RefundEvent{
				OrderID:      order.ID,
				SubOrderIDs:  ids,
				RefundStatus: next,
			},
		}}, nil
	})
}

// AggregateRefundStatus folds sub-order refund states into the order's:
// any pending request wins, then any refund, otherwise rejected.
func AggregateRefundStatus(subOrders []models.SubOrder) enums.RefundStatus {
	var refunded, rejected bool
	for _, sub := range subOrders {
		switch sub.RefundStatus {
		case enums.RefundStatusRequested:
			return enums.RefundStatusRequested
		case enums.RefundStatusRefunded:
			refunded = true
		case enums.RefundStatusRejected:
			rejected = true
		}
	}
	switch {
	case refunded:
		return enums.RefundStatusRefunded
	case rejected:
		return enums.RefundStatusRejected
	}
	return enums.RefundStatusNone
}

func (s *service) MarkProcessing(ctx context.Context, subOrderID uuid.UUID, actor Actor) (*models.TotalOrder, error) {
	const operation = "mark_processing"
	if err := RequireRole(actor, enums.RoleSeller); err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	return s.mutateSubOrder(ctx, operation, subOrderID, actor, func(repo Repository, order *models.TotalOrder, sub *models.SubOrder) ([]outbox.DomainEvent, error) {
		if !OwnsSubOrder(sub, actor) {
			return nil, pkgerrors.New(pkgerrors.CodePermission, "sub-order belongs to another seller")
		}
		if err := CanMarkProcessing(order, sub); err != nil {
			return nil, err
		}
		sub.Status = enums.OrderStatusProcessing
		if err := repo.UpdateSubOrder(ctx, sub, "status"); err != nil {
			return nil, storeError(err, "mark processing")
		}
		if order.Status == enums.OrderStatusPending {
			order.Status = enums.OrderStatusProcessing
		}
		if err := repo.UpdateTotalOrder(ctx, order, "status"); err != nil {
			return nil, storeError(err, "mark processing")
		}
		return []outbox.DomainEvent{subOrderEvent(enums.EventSubOrderProcessing, order, sub)}, nil
	})
}

// ConfirmDelivery marks one sub-order delivered. The order counts as
// delivered once every sub-order that is not cancelled has been delivered.
func (s *service) ConfirmDelivery(ctx context.Context, subOrderID uuid.UUID, actor Actor) (*models.TotalOrder, error) {
	const operation = "confirm_delivery"
	if err := RequireRole(actor, enums.RoleSeller, enums.RoleAdmin); err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	return s.mutateSubOrder(ctx, operation, subOrderID, actor, func(repo Repository, order *models.TotalOrder, sub *models.SubOrder) ([]outbox.DomainEvent, error) {
		if actor.Role == enums.RoleSeller && !OwnsSubOrder(sub, actor) {
			return nil, pkgerrors.New(pkgerrors.CodePermission, "sub-order belongs to another seller")
		}
		if err := CanConfirmDelivery(order, sub); err != nil {
			return nil, err
		}

		now := s.now()
		sub.IsDelivered = true
		sub.DeliveredAt = &now
		sub.Status = enums.OrderStatusSuccess
		if err := repo.UpdateSubOrder(ctx, sub, "is_delivered", "delivered_at", "status"); err != nil {
			return nil, storeError(err, "confirm delivery")
		}

		applyDeliveryAggregate(order)
		if err := repo.UpdateTotalOrder(ctx, order, "is_delivered", "delivered_at", "status"); err != nil {
			return nil, storeError(err, "confirm delivery")
		}
		return []outbox.DomainEvent{subOrderEvent(enums.EventSubOrderDelivered, order, sub)}, nil
	})
}

func applyDeliveryAggregate(order *models.TotalOrder) {
	if settleDelivery(order) {
		return
	}
	if order.Status == enums.OrderStatusPending {
		order.Status = enums.OrderStatusProcessing
	}
}

// settleDelivery marks the order delivered when every sub-order that is not
// cancelled has been delivered, and reports whether it did.
func settleDelivery(order *models.TotalOrder) bool {
	var (
		live      int
		delivered int
		latest    *time.Time
	)
	for i := range order.SubOrders {
		sub := &order.SubOrders[i]
		if sub.Status == enums.OrderStatusCancelled {
			continue
		}
		live++
		if !sub.IsDelivered || sub.DeliveredAt == nil {
			continue
		}
		delivered++
		if latest == nil || sub.DeliveredAt.After(*latest) {
			at := *sub.DeliveredAt
			latest = &at
		}
	}

	if live == 0 || delivered != live {
		return false
	}
	order.IsDelivered = true
	order.DeliveredAt = latest
	order.Status = enums.OrderStatusSuccess
	return true
}

// DeleteSubOrder lets the owning seller remove a sub-order outright. No
// lifecycle guard applies, but the delivery aggregate is recomputed over the
// sub-orders that remain.
func (s *service) DeleteSubOrder(ctx context.Context, subOrderID uuid.UUID, actor Actor) error {
	const operation = "delete_sub_order"
	if err := RequireRole(actor, enums.RoleSeller); err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return err
	}

	_, err := s.mutateSubOrder(ctx, operation, subOrderID, actor, func(repo Repository, order *models.TotalOrder, sub *models.SubOrder) ([]outbox.DomainEvent, error) {
		if !OwnsSubOrder(sub, actor) {
			return nil, pkgerrors.New(pkgerrors.CodePermission, "sub-order belongs to another seller")
		}
		if err := repo.DeleteSubOrder(ctx, sub.ID, actor.UserID); err != nil {
			return nil, lookupError(err, "sub-order not found")
		}
		event := subOrderEvent(enums.EventSubOrderDeleted, order, sub)
		order.SubOrders = lo.Reject(order.SubOrders, func(candidate models.SubOrder, _ int) bool {
			return candidate.ID == sub.ID
		})
		var fields []string
		if !order.IsDelivered && settleDelivery(order) {
			fields = []string{"is_delivered", "delivered_at", "status"}
		}
		if err := repo.UpdateTotalOrder(ctx, order, fields...); err != nil {
			return nil, storeError(err, "delete sub-order")
		}
		return []outbox.DomainEvent{event}, nil
	})
	return err
}

func (s *service) ListSellerSubOrders(ctx context.Context, actor Actor, params pagination.Params) (pagination.Page[models.SubOrder], error) {
	if err := RequireRole(actor, enums.RoleSeller); err != nil {
		return pagination.Page[models.SubOrder]{}, err
	}
	page, err := s.repo.ListSubOrdersBySeller(ctx, actor.UserID, params)
	if err != nil {
		return pagination.Page[models.SubOrder]{}, storeError(err, "list sub-orders")
	}
	return page, nil
}

func subOrderEvent(eventType enums.OutboxEventType, order *models.TotalOrder, sub *models.SubOrder) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubOrder,
		AggregateID:   sub.ID,
		Data: payloads.SubOrderEvent{
			OrderID:    order.ID,
			SubOrderID: sub.ID,
			SellerID:   sub.SellerID,
			Status:     sub.Status,
		},
	}
}

type orderMutation func(repo Repository, order *models.TotalOrder) ([]outbox.DomainEvent, error)

type subOrderMutation func(repo Repository, order *models.TotalOrder, sub *models.SubOrder) ([]outbox.DomainEvent, error)

func (s *service) mutateOrder(ctx context.Context, operation string, orderID uuid.UUID, actor Actor, apply orderMutation) (*models.TotalOrder, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	return s.mutate(ctx, operation, actor, func(repo Repository) (*models.TotalOrder, *models.SubOrder, error) {
		order, err := repo.FindTotalOrder(ctx, orderID)
		if err != nil {
			return nil, nil, lookupError(err, "order not found")
		}
		return order, nil, nil
	}, func(repo Repository, order *models.TotalOrder, _ *models.SubOrder) ([]outbox.DomainEvent, error) {
		return apply(repo, order)
	})
}

func (s *service) mutateSubOrder(ctx context.Context, operation string, subOrderID uuid.UUID, actor Actor, apply subOrderMutation) (*models.TotalOrder, error) {
	ctx = s.logg.WithSubOrderID(ctx, subOrderID.String())
	return s.mutate(ctx, operation, actor, func(repo Repository) (*models.TotalOrder, *models.SubOrder, error) {
		found, err := repo.FindSubOrder(ctx, subOrderID)
		if err != nil {
			return nil, nil, lookupError(err, "sub-order not found")
		}
		order, err := repo.FindTotalOrder(ctx, found.TotalOrderID)
		if err != nil {
			return nil, nil, lookupError(err, "order not found")
		}
		sub, ok := order.SubOrderByID(subOrderID)
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
		}
		return order, sub, nil
	}, apply)
}

func (s *service) mutate(
	ctx context.Context,
	operation string,
	actor Actor,
	load func(repo Repository) (*models.TotalOrder, *models.SubOrder, error),
	apply subOrderMutation,
) (*models.TotalOrder, error) {
	var (
		updated *models.TotalOrder
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, sub, err := load(repo)
		if err != nil {
			return err
		}
		from = order.Status
		events, err := apply(repo, order, sub)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := s.emit(ctx, tx, actor, event); err != nil {
				return err
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	s.committed(ctx, operation, from, updated, actor)
	return updated, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor Actor, event outbox.DomainEvent) error {
	event.Actor = &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
	event.OccurredAt = s.now()
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue outbox event")
	}
	return nil
}

// committed runs the post-commit side effects: transition log, metrics and
// a best-effort snapshot publish.
func (s *service) committed(ctx context.Context, operation string, from enums.OrderStatus, order *models.TotalOrder, actor Actor) {
	s.metrics.Transition(operation, string(order.Status))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":      order.ID.String(),
		"operation":     operation,
		"from":          string(from),
		"to":            string(order.Status),
		"cancel_status": string(order.CancelStatus),
		"refund_status": string(order.RefundStatus),
		"actor_id":      actor.UserID,
		"actor_role":    string(actor.Role),
	})
	s.logg.Info(logCtx, "order.transition")

	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, order); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "order snapshot publish failed")
	}
}

func lookupError(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return storeError(err, message)
}

func storeError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func validateResolution(input ResolutionInput) error {
	if err := RequireRole(input.Actor, enums.RoleSeller, enums.RoleAdmin); err != nil {
		return err
	}
	if !input.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "action must be approve or reject")
	}
	return nil
}

func validateCreateInput(input CreateOrderInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if missing := missingBillingFields(input.Billing); len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "billing information is incomplete").
			WithDetails(map[string]any{"fields": missing})
	}
	if input.Shipping.IsNegative() || input.Tax.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping and tax must not be negative")
	}
	for i, item := range input.Items {
		details := map[string]any{"index": i}
		switch {
		case strings.TrimSpace(item.SellerID) == "":
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item is missing a seller").WithDetails(details)
		case strings.TrimSpace(item.ProductID) == "":
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item is missing a product").WithDetails(details)
		case item.Quantity < 1:
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item quantity must be at least 1").WithDetails(details)
		case item.Price.IsNegative():
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item price must not be negative").WithDetails(details)
		}
	}
	return nil
}

func missingBillingFields(b models.BillingInfo) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"name", b.Name},
		{"email", b.Email},
		{"phone", b.Phone},
		{"address", b.Address},
		{"city", b.City},
		{"postalCode", b.PostalCode},
		{"country", b.Country},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func trimBilling(b models.BillingInfo) models.BillingInfo {
	return models.BillingInfo{
		Name:       strings.TrimSpace(b.Name),
		Email:      strings.TrimSpace(b.Email),
		Phone:      strings.TrimSpace(b.Phone),
		Address:    strings.TrimSpace(b.Address),
		City:       strings.TrimSpace(b.City),
		PostalCode: strings.TrimSpace(b.PostalCode),
		Country:    strings.TrimSpace(b.Country),
	}
}

// normalizeEvidence accepts absolute http, https or gs URIs.
func normalizeEvidence(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || parsed.Host == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence must be an absolute URI").
				WithDetails(map[string]any{"index": i})
		}
		switch strings.ToLower(parsed.Scheme) {
		case "http", "https", "gs":
		default:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence URI scheme not supported").
				WithDetails(map[string]any{"index": i, "scheme": parsed.Scheme})
		}
		out = append(out, value)
	}
	return out, nil
}
