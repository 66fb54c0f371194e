package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReturnsMetrics counts the outcomes of the return automation pipeline.
type ReturnsMetrics struct {
	transitions *prometheus.CounterVec
	refunds     *prometheus.CounterVec
	pickups     *prometheus.CounterVec
	inventory   *prometheus.CounterVec
	shipments   *prometheus.CounterVec
}

// NewReturnsMetrics registers the returns counters on the provided registerer.
func NewReturnsMetrics(reg prometheus.Registerer) *ReturnsMetrics {
	if reg == nil {
		return &ReturnsMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "return_transitions_total",
		Help: "Committed return status transitions.",
	}, []string{"from", "to"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "return_refunds_total",
		Help: "Refund attempts by resulting status.",
	}, []string{"status"})
	pickups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "return_pickups_total",
		Help: "Reverse pickup bookings by outcome.",
	}, []string{"outcome"})
	inventory := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustments_total",
		Help: "Inventory adjustment runs by action and outcome.",
	}, []string{"action", "outcome"})
	shipments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_shipments_total",
		Help: "Forward shipment runs by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, refunds, pickups, inventory, shipments)
	return &ReturnsMetrics{
		transitions: transitions,
		refunds:     refunds,
		pickups:     pickups,
		inventory:   inventory,
		shipments:   shipments,
	}
}

// IncTransition records a committed status change.
func (m *ReturnsMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncRefund records a refund attempt outcome.
func (m *ReturnsMetrics) IncRefund(status string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncPickup records a reverse pickup booking outcome.
func (m *ReturnsMetrics) IncPickup(outcome string) {
	if m == nil || m.pickups == nil {
		return
	}
	m.pickups.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncInventory records an inventory adjustment run.
func (m *ReturnsMetrics) IncInventory(action, outcome string) {
	if m == nil || m.inventory == nil {
		return
	}
	m.inventory.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// IncShipment records a forward shipment outcome.
func (m *ReturnsMetrics) IncShipment(outcome string) {
	if m == nil || m.shipments == nil {
		return
	}
	m.shipments.WithLabelValues(normalizeLabel(outcome)).Inc()
}
