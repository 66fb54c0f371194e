package pickups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/pkg/courier"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// courierStatuses maps courier tracking labels onto return statuses.
var courierStatuses = map[string]enums.ReturnStatus{
	"delivered":        enums.ReturnStatusReceived,
	"out for delivery": enums.ReturnStatusInTransit,
	"in transit":       enums.ReturnStatusInTransit,
	"picked up":        enums.ReturnStatusPickedUp,
	"cancelled":        enums.ReturnStatusCancelled,
	"canceled":         enums.ReturnStatusCancelled,
}

var pickupStatuses = map[enums.ReturnStatus]enums.PickupStatus{
	enums.ReturnStatusPickedUp:  enums.PickupStatusPickedUp,
	enums.ReturnStatusInTransit: enums.PickupStatusInTransit,
	enums.ReturnStatusReceived:  enums.PickupStatusDelivered,
	enums.ReturnStatusCancelled: enums.PickupStatusCancelled,
}

var indiaTime = time.FixedZone("IST", 5*60*60+30*60)

var courierTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

// MapCourierStatus resolves a courier label to a return status.
func MapCourierStatus(label string) (enums.ReturnStatus, bool) {
	status, ok := courierStatuses[strings.ToLower(strings.TrimSpace(label))]
	return status, ok
}

// TrackingResult reports one tracking poll.
type TrackingResult struct {
	ReturnID       uuid.UUID          `json:"return_id"`
	AWBCode        string             `json:"awb_code"`
	CourierStatus  string             `json:"courier_status"`
	PreviousStatus enums.ReturnStatus `json:"previous_status"`
	Status         enums.ReturnStatus `json:"status"`
	StatusChanged  bool               `json:"status_changed"`
	Scans          int                `json:"scans"`
}

func (c *coordinator) UpdateReturnTrackingInfo(ctx context.Context, returnID uuid.UUID) (*TrackingResult, error) {
	if returnID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ctx = c.logg.WithReturnID(ctx, returnID.String())

	ret, err := c.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !ret.Pickup.HasAWB() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return has no awb to track")
	}
	awb := *ret.Pickup.AWBCode

	info, err := c.courier.TrackByAWB(ctx, awb)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "courier tracking failed")
	}

	trackedAt := c.now().UTC()
	pickup := ret.Pickup
	pickup.TrackingHistory = scansFrom(info.Activities, trackedAt)
	pickup.LastTrackedAt = &trackedAt
	if eta, ok := parseCourierTime(info.ETD); ok {
		pickup.EstimatedDelivery = &eta
	}
	if info.TrackURL != "" {
		pickup.TrackingURL = info.TrackURL
	}

	result := &TrackingResult{
		ReturnID:       ret.ID,
		AWBCode:        awb,
		CourierStatus:  info.CurrentStatus,
		PreviousStatus: ret.Status,
		Status:         ret.Status,
		Scans:          len(pickup.TrackingHistory),
	}

	target, mapped := MapCourierStatus(info.CurrentStatus)
	if !mapped || target == ret.Status || !ret.Status.CanTransitionTo(target) {
		if mapped && target != ret.Status {
			c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
				"courier_status": info.CurrentStatus,
				"from":           ret.Status,
				"to":             target,
			}), "ignoring courier status that is not a legal transition")
		}
		if err := c.returns.SavePickup(ctx, ret.ID, pickup); err != nil {
			return nil, err
		}
		return result, nil
	}

	if ps, ok := pickupStatuses[target]; ok {
		pickup.Status = ps
	}
	if _, err := c.returns.UpdateStatus(ctx, returns.UpdateStatusInput{
		ReturnID: ret.ID,
		To:       target,
		Note:     fmt.Sprintf("Courier reported %q for AWB %s", info.CurrentStatus, awb),
		Pickup:   &pickup,
	}); err != nil {
		return nil, err
	}
	result.Status = target
	result.StatusChanged = true

	if target == enums.ReturnStatusReceived {
		c.notifier.NotifyCustomer(ctx, ret.OrderID, notifications.ReturnReceived(ret.ID, ret.ReturnNumber))
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"courier_status": info.CurrentStatus,
		"from":           result.PreviousStatus,
		"to":             target,
	}), "return tracking updated")
	return result, nil
}

func scansFrom(activities []courier.TrackingActivity, fallback time.Time) []types.TrackingScan {
	scans := make([]types.TrackingScan, 0, len(activities))
	for _, act := range activities {
		at, ok := parseCourierTime(act.Date)
		if !ok {
			at = fallback
		}
		scans = append(scans, types.TrackingScan{
			Status:   act.Status,
			Activity: act.Activity,
			Location: act.Location,
			At:       at,
		})
	}
	return scans
}

// parseCourierTime reads courier timestamps, which are India local time.
func parseCourierTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range courierTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, indiaTime); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
