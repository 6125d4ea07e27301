package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DefaultCancellationWindow applies when no window is configured.
const DefaultCancellationWindow = 5 * time.Minute

// CancellationDeadline is the last instant a request still counts as inside
// the window. It is derived on read and never stored.
func CancellationDeadline(createdAt time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultCancellationWindow
	}
	return createdAt.Add(window)
}

// WithinCancellationWindow reports whether now is at or before the deadline.
func WithinCancellationWindow(createdAt, now time.Time, window time.Duration) bool {
	return !now.After(CancellationDeadline(createdAt, window))
}

// DecideCancellation picks the outcome of a cancellation request. Under
// auto_within_window an order still inside its window whose sub-orders are all
// pending is approved immediately; everything else waits for the seller.
func DecideCancellation(
	policy enums.CancellationPolicy,
	window time.Duration,
	createdAt, now time.Time,
	subOrders []models.SubOrder,
) enums.CancellationOutcome {
	if policy != enums.CancellationPolicyAutoWithinWindow {
		return enums.CancellationAwaitingSellerApproval
	}
	if !WithinCancellationWindow(createdAt, now, window) {
		return enums.CancellationAwaitingSellerApproval
	}
	for _, sub := range subOrders {
		if sub.Status != enums.OrderStatusPending {
			return enums.CancellationAwaitingSellerApproval
		}
	}
	return enums.CancellationAutoApproved
}
