package types

import (
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

// OrderShipment tracks the forward courier shipment of an order.
type OrderShipment struct {
	CourierOrderID string               `json:"courier_order_id,omitempty"`
	ShipmentID     string               `json:"shipment_id,omitempty"`
	AWBCode        string               `json:"awb_code,omitempty"`
	CourierName    string               `json:"courier_name,omitempty"`
	TrackingURL    string               `json:"tracking_url,omitempty"`
	Status         enums.ShipmentStatus `json:"status"`
	Attempts       int                  `json:"attempts"`
	LastError      string               `json:"last_error,omitempty"`
	ShippedAt      *time.Time           `json:"shipped_at,omitempty"`
	LastTrackedAt  *time.Time           `json:"last_tracked_at,omitempty"`
}
