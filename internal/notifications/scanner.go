package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type attentionSource interface {
	ListSubOrdersNeedingAttention(ctx context.Context, since time.Time, limit int) ([]orders.SubOrderWithOrder, error)
}

type alertWriter interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
}

// ScanResult summarizes one pass of the scanner.
type ScanResult struct {
	Scanned int
	Created int
	// Latest is the newest change seen, the next pass's starting point.
	Latest time.Time
}

// AlertScanner turns sub-orders that need seller attention into alerts.
// Alerts are unique per (seller, sub-order, type) so rescanning is harmless.
type AlertScanner struct {
	source attentionSource
	alerts alertWriter
	limit  int
	logg   *logger.Logger
}

func NewAlertScanner(source attentionSource, alerts alertWriter, limit int, logg *logger.Logger) (*AlertScanner, error) {
	if source == nil {
		return nil, fmt.Errorf("attention source required")
	}
	if alerts == nil {
		return nil, fmt.Errorf("alert writer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &AlertScanner{source: source, alerts: alerts, limit: limit, logg: logg}, nil
}

// Scan raises alerts for everything changed at or after since. Failures on
// single rows are collected and returned together; the rest still run.
func (s *AlertScanner) Scan(ctx context.Context, since time.Time) (ScanResult, error) {
	result := ScanResult{Latest: since}
	rows, err := s.source.ListSubOrdersNeedingAttention(ctx, since, s.limit)
	if err != nil {
		return result, fmt.Errorf("list sub-orders needing attention: %w", err)
	}

	var errs error
	for _, row := range rows {
		result.Scanned++
		if row.SubOrder.UpdatedAt.After(result.Latest) {
			result.Latest = row.SubOrder.UpdatedAt
		}
		if row.Order.UpdatedAt.After(result.Latest) {
			result.Latest = row.Order.UpdatedAt
		}

		for _, alert := range AlertsFor(row.Order, row.SubOrder) {
			created, err := s.alerts.Create(ctx, alert)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("sub-order %s %s alert: %w", row.SubOrder.ID, alert.Type, err))
				continue
			}
			if created {
				result.Created++
				s.logg.Info(s.logg.WithFields(ctx, map[string]any{
					"seller_id":    alert.SellerID,
					"sub_order_id": alert.SubOrderID.String(),
					"alert_type":   string(alert.Type),
				}), "seller alert raised")
			}
		}
	}
	return result, errs
}

// AlertsFor lists the alerts a sub-order currently warrants.
func AlertsFor(order models.TotalOrder, sub models.SubOrder) []*models.Notification {
	var out []*models.Notification
	newAlert := func(kind enums.AlertType, title, message string) *models.Notification {
		return &models.Notification{
			SellerID:   sub.SellerID,
			SubOrderID: sub.ID,
			OrderID:    order.ID,
			Type:       kind,
			Title:      title,
			Message:    message,
		}
	}
	short := shortID(order.ID.String())

	if order.IsPaid && sub.Status == enums.OrderStatusPending && order.CancelStatus == enums.CancelStatusNone {
		out = append(out, newAlert(enums.AlertNewOrder,
			"New paid order",
			fmt.Sprintf("Order %s is paid and waiting for you to start processing.", short)))
	}
	if order.CancelStatus == enums.CancelStatusRequested {
		out = append(out, newAlert(enums.AlertCancellationRequested,
			"Cancellation requested",
			fmt.Sprintf("The customer asked to cancel order %s.", short)))
	}
	if sub.RefundStatus == enums.RefundStatusRequested {
		out = append(out, newAlert(enums.AlertRefundRequested,
			"Refund requested",
			fmt.Sprintf("The customer asked for a refund on order %s.", short)))
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
