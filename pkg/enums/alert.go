package enums

// AlertType classifies seller alerts raised by the background poll.
type AlertType string

const (
	AlertNewOrder              AlertType = "new_order"
	AlertCancellationRequested AlertType = "cancellation_requested"
	AlertRefundRequested       AlertType = "refund_requested"
)

// IsValid reports whether the value is a known AlertType.
func (a AlertType) IsValid() bool {
	switch a {
	case AlertNewOrder, AlertCancellationRequested, AlertRefundRequested:
		return true
	}
	return false
}
