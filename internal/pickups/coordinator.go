package pickups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/courier"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/metrics"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox/payloads"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

const (
	maxCreateAttempts = 3
	baseBackoff       = 2 * time.Second
)

// CourierGateway is the subset of the courier API used for reverse pickups.
type CourierGateway interface {
	CreateReturnOrder(ctx context.Context, req courier.ReturnOrderRequest) (*courier.OrderResponse, error)
	Serviceability(ctx context.Context, q courier.ServiceabilityQuery) ([]courier.CourierOption, error)
	AssignAWB(ctx context.Context, shipmentID courier.ID, courierID int, isReturn bool) (*courier.AWBAssignment, error)
	GeneratePickup(ctx context.Context, shipmentID courier.ID) (*courier.PickupConfirmation, error)
	TrackByAWB(ctx context.Context, awb string) (*courier.TrackingInfo, error)
	CancelByAWB(ctx context.Context, awbs ...string) error
	TrackingURL(awb string) string
}

// PickupResult is the outcome of the two-step pickup automation.
type PickupResult struct {
	Success                    bool    `json:"success"`
	FullyAutomated             bool    `json:"fully_automated"`
	RequiresManualIntervention bool    `json:"requires_manual_intervention,omitempty"`
	RequiresManualCourier      bool    `json:"requires_manual_courier,omitempty"`
	ShipmentID                 string  `json:"shipment_id,omitempty"`
	AWBCode                    *string `json:"awb_code"`
	CourierName                string  `json:"courier_name,omitempty"`
	TrackingURL                string  `json:"tracking_url,omitempty"`
	Error                      string  `json:"error,omitempty"`
}

// Coordinator books, assigns, tracks and cancels reverse pickups.
type Coordinator interface {
	CreateReversePickup(ctx context.Context, returnID uuid.UUID) (*types.ReturnPickup, error)
	ProcessReversePickup(ctx context.Context, returnID uuid.UUID) (*types.ReturnPickup, error)
	AutomateReversePickup(ctx context.Context, returnID uuid.UUID) *PickupResult
	UpdateReturnTrackingInfo(ctx context.Context, returnID uuid.UUID) (*TrackingResult, error)
	CancelReversePickup(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, reason string) (*models.ReturnRequest, error)
}

type coordinator struct {
	returns   returns.Service
	courier   CourierGateway
	notifier  notifications.Notifier
	warehouse config.WarehouseConfig
	logg      *logger.Logger
	metrics   *metrics.ReturnsMetrics
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewCoordinator builds the reverse pickup coordinator.
func NewCoordinator(
	returnsSvc returns.Service,
	gateway CourierGateway,
	notifier notifications.Notifier,
	warehouse config.WarehouseConfig,
	logg *logger.Logger,
	m *metrics.ReturnsMetrics,
) (Coordinator, error) {
	if returnsSvc == nil {
		return nil, fmt.Errorf("returns service required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !types.ValidPostalCode(warehouse.PostalCode) || strings.TrimSpace(warehouse.Line1) == "" {
		return nil, fmt.Errorf("warehouse address with a valid postal code required")
	}
	return &coordinator{
		returns:   returnsSvc,
		courier:   gateway,
		notifier:  notifier,
		warehouse: warehouse,
		logg:      logg,
		metrics:   m,
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *coordinator) CreateReversePickup(ctx context.Context, returnID uuid.UUID) (*types.ReturnPickup, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ctx = c.logg.WithReturnID(ctx, returnID.String())

	ret, err := c.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret.Pickup.HasShipment() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("pickup shipment %s already exists", ret.Pickup.ShipmentID))
	}
	if ret.Status != enums.ReturnStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("return must be %s to schedule a pickup, current status is %s", enums.ReturnStatusApproved, ret.Status))
	}
	if err := validateForPickup(ret); err != nil {
		c.markFailed(ctx, ret, 0, err)
		return nil, err
	}

	req := buildReturnOrder(ret, c.warehouse, c.now())
	resp, attempts, err := c.createWithRetry(ctx, req)
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("courier shipment creation failed after %d attempts", attempts))
		c.markFailed(ctx, ret, attempts, wrapped)
		c.metrics.IncPickup("create_failed")
		return nil, wrapped
	}

	scheduledAt := c.now().UTC()
	pickup := ret.Pickup
	pickup.Address = pickupAddress(ret)
	pickup.ShipmentID = resp.ShipmentID.String()
	pickup.CourierOrderID = resp.OrderID.String()
	pickup.Status = enums.PickupStatusScheduled
	pickup.ScheduledAt = &scheduledAt
	pickup.Attempts = attempts
	pickup.LastError = ""

	if _, err := c.returns.UpdateStatus(ctx, returns.UpdateStatusInput{
		ReturnID: ret.ID,
		To:       enums.ReturnStatusPickupScheduled,
		Note:     fmt.Sprintf("Reverse pickup shipment %s created", pickup.ShipmentID),
		Pickup:   &pickup,
	}); err != nil {
		// The shipment exists at the courier; keep its id so it is never booked twice.
		c.logg.Error(ctx, "pickup status transition failed", err)
		if saveErr := c.returns.SavePickup(ctx, ret.ID, pickup); saveErr != nil {
			c.logg.Error(ctx, "saving pickup shipment failed", saveErr)
		}
		return nil, err
	}

	c.metrics.IncPickup("created")
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"shipment_id": pickup.ShipmentID,
		"attempts":    attempts,
	}), "reverse pickup shipment created")
	return &pickup, nil
}

// createWithRetry calls the courier up to maxCreateAttempts times with
// doubling backoff between attempts.
func (c *coordinator) createWithRetry(ctx context.Context, req courier.ReturnOrderRequest) (*courier.OrderResponse, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		resp, err := c.courier.CreateReturnOrder(ctx, req)
		if err == nil && resp.Accepted() {
			return resp, attempt, nil
		}
		if err == nil {
			err = fmt.Errorf("courier returned no shipment (status_code=%d)", statusCode(resp))
		}
		lastErr = err
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		}), "courier return order attempt failed")
		if attempt == maxCreateAttempts {
			break
		}
		if err := c.sleep(ctx, baseBackoff*time.Duration(1<<(attempt-1))); err != nil {
			return nil, attempt, err
		}
	}
	return nil, maxCreateAttempts, lastErr
}

func statusCode(resp *courier.OrderResponse) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// markFailed leaves the return approved and flags the pickup for an operator.
func (c *coordinator) markFailed(ctx context.Context, ret *models.ReturnRequest, attempts int, cause error) {
	pickup := ret.Pickup
	pickup.Status = enums.PickupStatusFailed
	pickup.LastError = cause.Error()
	pickup.Attempts = attempts
	if err := c.returns.SavePickup(ctx, ret.ID, pickup); err != nil {
		c.logg.Error(ctx, "saving failed pickup state failed", err)
	}
	c.addNote(ctx, ret.ID, "Reverse pickup could not be created: "+cause.Error())
}

func (c *coordinator) ProcessReversePickup(ctx context.Context, returnID uuid.UUID) (*types.ReturnPickup, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ctx = c.logg.WithReturnID(ctx, returnID.String())

	ret, err := c.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	pickup := ret.Pickup
	if !pickup.HasShipment() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return has no pickup shipment to assign a courier to")
	}
	if pickup.HasAWB() {
		return &pickup, nil
	}
	if ret.Status == enums.ReturnStatusApproved {
		if ret, err = c.resumeScheduled(ctx, ret); err != nil {
			return nil, err
		}
		pickup = ret.Pickup
	}
	if ret.Status != enums.ReturnStatusPickupScheduled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("return must be %s to assign a courier, current status is %s", enums.ReturnStatusPickupScheduled, ret.Status))
	}

	shipmentID := courier.ID(pickup.ShipmentID)
	options, err := c.courier.Serviceability(ctx, courier.ServiceabilityQuery{
		PickupPostcode:   strings.TrimSpace(pickup.Address.PostalCode),
		DeliveryPostcode: c.warehouse.PostalCode,
		WeightKg:         packageWeight(ret.ItemCount()),
		IsReturn:         true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier serviceability lookup failed")
	}
	chosen, ok := courier.SelectCourier(options)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "no courier serves the pickup lane")
	}

	assignment, err := c.courier.AssignAWB(ctx, shipmentID, chosen.CourierCompanyID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier assignment failed")
	}
	awb := assignment.AWBCode
	pickup.AWBCode = &awb
	pickup.CourierID = chosen.CourierCompanyID
	pickup.CourierName = chosen.CourierName
	if assignment.CourierName != "" {
		pickup.CourierName = assignment.CourierName
	}
	pickup.TrackingURL = c.courier.TrackingURL(awb)

	if _, err := c.courier.GeneratePickup(ctx, shipmentID); err != nil {
		pickup.LastError = err.Error()
		if saveErr := c.returns.SavePickup(ctx, ret.ID, pickup); saveErr != nil {
			c.logg.Error(ctx, "saving assigned courier failed", saveErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "pickup request failed")
	}

	pickup.Status = enums.PickupStatusScheduled
	pickup.LastError = ""
	err = c.returns.SavePickup(ctx, ret.ID, pickup, outbox.DomainEvent{
		EventType:     enums.EventReturnPickupScheduled,
		AggregateType: enums.AggregateReturnRequest,
		AggregateID:   ret.ID,
		Actor:         outbox.SystemActor(),
		Data: payloads.ReturnPickupScheduledEvent{
			ReturnID:     ret.ID,
			ReturnNumber: ret.ReturnNumber,
			OrderID:      ret.OrderID,
			AWBCode:      awb,
			CourierName:  pickup.CourierName,
			TrackingURL:  pickup.TrackingURL,
		},
	})
	if err != nil {
		return nil, err
	}

	c.metrics.IncPickup("courier_assigned")
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"awb_code": awb,
		"courier":  pickup.CourierName,
	}), "reverse pickup courier assigned")
	return &pickup, nil
}

// resumeScheduled completes the pickup_scheduled transition for a return whose
// shipment was booked while the status update failed.
func (c *coordinator) resumeScheduled(ctx context.Context, ret *models.ReturnRequest) (*models.ReturnRequest, error) {
	pickup := ret.Pickup
	pickup.Status = enums.PickupStatusScheduled
	if pickup.ScheduledAt == nil {
		scheduledAt := c.now().UTC()
		pickup.ScheduledAt = &scheduledAt
	}
	pickup.LastError = ""
	updated, err := c.returns.UpdateStatus(ctx, returns.UpdateStatusInput{
		ReturnID: ret.ID,
		To:       enums.ReturnStatusPickupScheduled,
		Note:     fmt.Sprintf("Reverse pickup shipment %s already booked; status moved to %s", pickup.ShipmentID, enums.ReturnStatusPickupScheduled),
		Pickup:   &pickup,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err,
			fmt.Sprintf("shipment %s is booked but the return is still %s; move it to %s before assigning a courier",
				pickup.ShipmentID, ret.Status, enums.ReturnStatusPickupScheduled))
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{"shipment_id": pickup.ShipmentID}), "resumed pickup scheduling for booked shipment")
	return updated, nil
}

func (c *coordinator) AutomateReversePickup(ctx context.Context, returnID uuid.UUID) *PickupResult {
	ctx = c.logg.WithReturnID(ctx, returnID.String())

	ret, err := c.returns.Get(ctx, returnID)
	if err != nil {
		return &PickupResult{RequiresManualIntervention: true, Error: err.Error()}
	}

	shipmentID := ret.Pickup.ShipmentID
	if !ret.Pickup.HasShipment() {
		created, err := c.CreateReversePickup(ctx, returnID)
		if err != nil {
			return &PickupResult{RequiresManualIntervention: true, Error: err.Error()}
		}
		shipmentID = created.ShipmentID
	}

	assigned, err := c.ProcessReversePickup(ctx, returnID)
	if err != nil {
		c.logg.Warn(ctx, "courier assignment needs an operator: "+err.Error())
		c.addNote(ctx, returnID, fmt.Sprintf("Shipment %s exists but no courier could be assigned automatically: %s. Assign a courier manually.", shipmentID, err.Error()))
		c.metrics.IncPickup("manual_courier")
		return &PickupResult{
			Success:               true,
			RequiresManualCourier: true,
			ShipmentID:            shipmentID,
			Error:                 err.Error(),
		}
	}

	c.notifier.NotifyCustomer(ctx, ret.OrderID, notifications.ReturnPickupScheduled(ret.ID, ret.ReturnNumber, *assigned.AWBCode, assigned.CourierName, assigned.TrackingURL))
	return &PickupResult{
		Success:        true,
		FullyAutomated: true,
		ShipmentID:     assigned.ShipmentID,
		AWBCode:        assigned.AWBCode,
		CourierName:    assigned.CourierName,
		TrackingURL:    assigned.TrackingURL,
	}
}

func (c *coordinator) CancelReversePickup(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, reason string) (*models.ReturnRequest, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}
	ctx = c.logg.WithReturnID(ctx, returnID.String())

	ret, err := c.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !ret.Status.CanTransitionTo(enums.ReturnStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("return in status %s cannot be cancelled", ret.Status))
	}
	if ret.Pickup.HasAWB() {
		if err := c.courier.CancelByAWB(ctx, *ret.Pickup.AWBCode); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier cancellation failed")
		}
	}

	pickup := ret.Pickup
	pickup.Status = enums.PickupStatusCancelled
	updated, err := c.returns.UpdateStatus(ctx, returns.UpdateStatusInput{
		ReturnID:  ret.ID,
		To:        enums.ReturnStatusCancelled,
		ActorID:   actorID,
		ActorRole: enums.RoleAdmin,
		Note:      "Reverse pickup cancelled: " + reason,
		Reason:    reason,
		Pickup:    &pickup,
	})
	if err != nil {
		return nil, err
	}
	c.metrics.IncPickup("cancelled")
	c.logg.Info(c.logg.WithField(ctx, "reason", reason), "reverse pickup cancelled")
	return updated, nil
}

func (c *coordinator) addNote(ctx context.Context, returnID uuid.UUID, note string) {
	if _, err := c.returns.AddNote(ctx, returnID, nil, note); err != nil {
		c.logg.Error(ctx, "append pickup note failed", err)
	}
}
