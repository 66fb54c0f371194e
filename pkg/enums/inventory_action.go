package enums

import "fmt"

// InventoryAction labels an inventory log entry.
type InventoryAction string

const (
	InventoryActionReserve InventoryAction = "reserve"
	InventoryActionRestore InventoryAction = "restore"
)

var validInventoryActions = []InventoryAction{
	InventoryActionReserve,
	InventoryActionRestore,
}

// String implements fmt.Stringer.
func (a InventoryAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known InventoryAction.
func (a InventoryAction) IsValid() bool {
	for _, candidate := range validInventoryActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseInventoryAction converts raw input into a InventoryAction.
func ParseInventoryAction(value string) (InventoryAction, error) {
	for _, candidate := range validInventoryActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory action %q", value)
}
