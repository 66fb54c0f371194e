package enums

import "fmt"

// PickupStatus tracks the courier side of a reverse pickup.
type PickupStatus string

const (
	PickupStatusPending   PickupStatus = "pending"
	PickupStatusScheduled PickupStatus = "scheduled"
	PickupStatusPickedUp  PickupStatus = "picked_up"
	PickupStatusInTransit PickupStatus = "in_transit"
	PickupStatusDelivered PickupStatus = "delivered"
	PickupStatusFailed    PickupStatus = "failed"
	PickupStatusCancelled PickupStatus = "cancelled"
)

var validPickupStatuses = []PickupStatus{
	PickupStatusPending,
	PickupStatusScheduled,
	PickupStatusPickedUp,
	PickupStatusInTransit,
	PickupStatusDelivered,
	PickupStatusFailed,
	PickupStatusCancelled,
}

// String implements fmt.Stringer.
func (p PickupStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PickupStatus.
func (p PickupStatus) IsValid() bool {
	for _, candidate := range validPickupStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePickupStatus converts raw input into a PickupStatus.
func ParsePickupStatus(value string) (PickupStatus, error) {
	for _, candidate := range validPickupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup status %q", value)
}
