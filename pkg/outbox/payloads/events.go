package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

// ReturnStatusChangedEvent is emitted on every committed return transition.
type ReturnStatusChangedEvent struct {
	ReturnID     uuid.UUID          `json:"return_id"`
	ReturnNumber string             `json:"return_number"`
	OrderID      uuid.UUID          `json:"order_id"`
	From         enums.ReturnStatus `json:"from"`
	To           enums.ReturnStatus `json:"to"`
	Reason       string             `json:"reason,omitempty"`
	ChangedAt    time.Time          `json:"changed_at"`
}

// ReturnPickupScheduledEvent carries the courier booking for a reverse pickup.
type ReturnPickupScheduledEvent struct {
	ReturnID     uuid.UUID `json:"return_id"`
	ReturnNumber string    `json:"return_number"`
	OrderID      uuid.UUID `json:"order_id"`
	AWBCode      string    `json:"awb_code"`
	CourierName  string    `json:"courier_name"`
	TrackingURL  string    `json:"tracking_url"`
}

// ReturnRefundProcessedEvent is emitted once a refund transaction succeeds.
type ReturnRefundProcessedEvent struct {
	ReturnID      uuid.UUID       `json:"return_id"`
	ReturnNumber  string          `json:"return_number"`
	OrderID       uuid.UUID       `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
}

// InventoryAdjustedEvent summarizes a reserve or restore run.
type InventoryAdjustedEvent struct {
	OrderID            uuid.UUID             `json:"order_id"`
	Action             enums.InventoryAction `json:"action"`
	Reason             string                `json:"reason"`
	TotalItemsAffected int                   `json:"total_items_affected"`
	ProductsUpdated    int                   `json:"products_updated"`
	ErrorCount         int                   `json:"error_count"`
}

// OrderShippedEvent is emitted when a forward shipment receives an AWB.
type OrderShippedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	AWBCode     string    `json:"awb_code"`
	CourierName string    `json:"courier_name"`
	TrackingURL string    `json:"tracking_url"`
	ShippedAt   time.Time `json:"shipped_at"`
}

// OrderDeliveredEvent is emitted when tracking reports the parcel delivered.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled and its stock restored.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// CustomerNotificationRequestedEvent asks the notification worker to message a customer.
type CustomerNotificationRequestedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	ReturnID  *uuid.UUID        `json:"return_id,omitempty"`
	UserID    *uuid.UUID        `json:"user_id,omitempty"`
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
}
