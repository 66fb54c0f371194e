package types

import (
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

// ReturnPickup is the courier side of a return, filled in step by step as the
// reverse pickup progresses.
type ReturnPickup struct {
	ShipmentID        string             `json:"shipment_id,omitempty"`
	CourierOrderID    string             `json:"courier_order_id,omitempty"`
	AWBCode           *string            `json:"awb_code"`
	CourierID         int                `json:"courier_id,omitempty"`
	CourierName       string             `json:"courier_name,omitempty"`
	TrackingURL       string             `json:"tracking_url,omitempty"`
	Status            enums.PickupStatus `json:"status,omitempty"`
	Address           Address            `json:"address"`
	TrackingHistory   []TrackingScan     `json:"tracking_history,omitempty"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery,omitempty"`
	ScheduledAt       *time.Time         `json:"scheduled_at,omitempty"`
	LastTrackedAt     *time.Time         `json:"last_tracked_at,omitempty"`
	LastError         string             `json:"last_error,omitempty"`
	Attempts          int                `json:"attempts,omitempty"`
}

// HasShipment reports whether a courier shipment already exists.
func (p ReturnPickup) HasShipment() bool {
	return p.ShipmentID != ""
}

// HasAWB reports whether a courier has been assigned.
func (p ReturnPickup) HasAWB() bool {
	return p.AWBCode != nil && *p.AWBCode != ""
}

// TrackingScan is one courier scan event.
type TrackingScan struct {
	Status   string    `json:"status"`
	Activity string    `json:"activity,omitempty"`
	Location string    `json:"location,omitempty"`
	At       time.Time `json:"at"`
}
