package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateReturnRequest OutboxAggregateType = "return_request"
	AggregateOrder         OutboxAggregateType = "order"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateReturnRequest,
	AggregateOrder,
	AggregateNotification,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventReturnStatusChanged           OutboxEventType = "return_status_changed"
	EventReturnPickupScheduled         OutboxEventType = "return_pickup_scheduled"
	EventReturnRefundProcessed         OutboxEventType = "return_refund_processed"
	EventInventoryAdjusted             OutboxEventType = "inventory_adjusted"
	EventOrderShipped                  OutboxEventType = "order_shipped"
	EventOrderDelivered                OutboxEventType = "order_delivered"
	EventOrderCancelled                OutboxEventType = "order_cancelled"
	EventCustomerNotificationRequested OutboxEventType = "customer_notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReturnStatusChanged,
	EventReturnPickupScheduled,
	EventReturnRefundProcessed,
	EventInventoryAdjusted,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventCustomerNotificationRequested,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
