package enums

import "fmt"

// ReturnStatus is the lifecycle state of a return request.
type ReturnStatus string

const (
	ReturnStatusRequested       ReturnStatus = "requested"
	ReturnStatusApproved        ReturnStatus = "approved"
	ReturnStatusRejected        ReturnStatus = "rejected"
	ReturnStatusPickupScheduled ReturnStatus = "pickup_scheduled"
	ReturnStatusPickedUp        ReturnStatus = "picked_up"
	ReturnStatusInTransit       ReturnStatus = "in_transit"
	ReturnStatusReceived        ReturnStatus = "received"
	ReturnStatusInspected       ReturnStatus = "inspected"
	ReturnStatusApprovedRefund  ReturnStatus = "approved_refund"
	ReturnStatusRejectedRefund  ReturnStatus = "rejected_refund"
	ReturnStatusRefundProcessed ReturnStatus = "refund_processed"
	ReturnStatusCompleted       ReturnStatus = "completed"
	ReturnStatusCancelled       ReturnStatus = "cancelled"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusRequested,
	ReturnStatusApproved,
	ReturnStatusRejected,
	ReturnStatusPickupScheduled,
	ReturnStatusPickedUp,
	ReturnStatusInTransit,
	ReturnStatusReceived,
	ReturnStatusInspected,
	ReturnStatusApprovedRefund,
	ReturnStatusRejectedRefund,
	ReturnStatusRefundProcessed,
	ReturnStatusCompleted,
	ReturnStatusCancelled,
}

// returnTransitions lists every legal edge. pickup_scheduled -> approved is the
// rollback taken when a scheduled pickup has to be redone.
var returnTransitions = map[ReturnStatus]map[ReturnStatus]bool{
	ReturnStatusRequested: {
		ReturnStatusApproved:  true,
		ReturnStatusRejected:  true,
		ReturnStatusCancelled: true,
	},
	ReturnStatusApproved: {
		ReturnStatusPickupScheduled: true,
		ReturnStatusCancelled:       true,
	},
	ReturnStatusPickupScheduled: {
		ReturnStatusPickedUp:  true,
		ReturnStatusInTransit: true,
		ReturnStatusReceived:  true,
		ReturnStatusApproved:  true,
		ReturnStatusCancelled: true,
	},
	ReturnStatusPickedUp: {
		ReturnStatusInTransit: true,
		ReturnStatusReceived:  true,
		ReturnStatusCancelled: true,
	},
	ReturnStatusInTransit: {
		ReturnStatusReceived:  true,
		ReturnStatusCancelled: true,
	},
	ReturnStatusReceived: {
		ReturnStatusInspected:      true,
		ReturnStatusApprovedRefund: true,
		ReturnStatusRejectedRefund: true,
	},
	ReturnStatusInspected: {
		ReturnStatusApprovedRefund: true,
		ReturnStatusRejectedRefund: true,
	},
	ReturnStatusApprovedRefund: {
		ReturnStatusRefundProcessed: true,
	},
	ReturnStatusRefundProcessed: {
		ReturnStatusCompleted: true,
	},
}

// String implements fmt.Stringer.
func (s ReturnStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReturnStatus.
func (s ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ReturnStatus) IsTerminal() bool {
	return s.IsValid() && len(returnTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	return returnTransitions[s][next]
}

// AllowedTransitions returns the legal next states in declaration order.
func (s ReturnStatus) AllowedTransitions() []ReturnStatus {
	next := []ReturnStatus{}
	for _, candidate := range validReturnStatuses {
		if returnTransitions[s][candidate] {
			next = append(next, candidate)
		}
	}
	return next
}

// ParseReturnStatus converts raw input into a ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
