package enums

import "fmt"

// OrderStatus tracks the fulfilment state shared by total orders and sub-orders.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusSuccess    OrderStatus = "success"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusSuccess,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Cancellable reports whether a sub-order in this status can still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// CancelStatus tracks the customer cancellation request on a total order.
type CancelStatus string

const (
	CancelStatusNone      CancelStatus = "none"
	CancelStatusRequested CancelStatus = "requested"
	CancelStatusApproved  CancelStatus = "approved"
	CancelStatusRejected  CancelStatus = "rejected"
)

var validCancelStatuses = []CancelStatus{
	CancelStatusNone,
	CancelStatusRequested,
	CancelStatusApproved,
	CancelStatusRejected,
}

func (s CancelStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CancelStatus.
func (s CancelStatus) IsValid() bool {
	for _, candidate := range validCancelStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCancelStatus converts raw input into a CancelStatus.
func ParseCancelStatus(value string) (CancelStatus, error) {
	for _, candidate := range validCancelStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel status %q", value)
}
