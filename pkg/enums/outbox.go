package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateTotalOrder OutboxAggregateType = "total_order"
	AggregateSubOrder   OutboxAggregateType = "sub_order"
)

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateTotalOrder || a == AggregateSubOrder
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventCancellationRequested OutboxEventType = "cancellation_requested"
	EventCancellationResolved  OutboxEventType = "cancellation_resolved"
	EventRefundRequested       OutboxEventType = "refund_requested"
	EventRefundResolved        OutboxEventType = "refund_resolved"
	EventSubOrderProcessing    OutboxEventType = "suborder_processing"
	EventSubOrderDelivered     OutboxEventType = "suborder_delivered"
	EventSubOrderDeleted       OutboxEventType = "suborder_deleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventCancellationRequested,
	EventCancellationResolved,
	EventRefundRequested,
	EventRefundResolved,
	EventSubOrderProcessing,
	EventSubOrderDelivered,
	EventSubOrderDeleted,
}

func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
