package returns

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/aurelia-jewels/aurelia-backend/api/middleware"
	"github.com/aurelia-jewels/aurelia-backend/api/responses"
	"github.com/aurelia-jewels/aurelia-backend/api/validators"
	"github.com/aurelia-jewels/aurelia-backend/internal/pickups"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// PickupCoordinator is the reverse pickup surface the admin API drives.
type PickupCoordinator interface {
	CreateReversePickup(ctx context.Context, returnID uuid.UUID) (*types.ReturnPickup, error)
	ProcessReversePickup(ctx context.Context, returnID uuid.UUID) (*types.ReturnPickup, error)
	AutomateReversePickup(ctx context.Context, returnID uuid.UUID) *pickups.PickupResult
	UpdateReturnTrackingInfo(ctx context.Context, returnID uuid.UUID) (*pickups.TrackingResult, error)
	CancelReversePickup(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, reason string) (*models.ReturnRequest, error)
}

type cancelPickupRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// AutomatePickup runs shipment creation and courier assignment in one call.
func AutomatePickup(coordinator PickupCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result := coordinator.AutomateReversePickup(r.Context(), returnID)
		status := http.StatusOK
		if !result.Success {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// CreateShipment creates the courier return order without assigning a courier.
func CreateShipment(coordinator PickupCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pickup, err := coordinator.CreateReversePickup(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, pickup)
	}
}

// AssignCourier assigns a courier and schedules pickup for an existing shipment.
func AssignCourier(coordinator PickupCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pickup, err := coordinator.ProcessReversePickup(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pickup)
	}
}

// CancelPickup cancels the courier pickup and the return.
func CancelPickup(coordinator PickupCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cancelPickupRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ret, err := coordinator.CancelReversePickup(r.Context(), returnID, middleware.ActorIDFromContext(r.Context()), validators.SanitizeString(body.Reason, 500))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewReturnDTO(ret))
	}
}

// RefreshTracking pulls the latest courier scans for one return.
func RefreshTracking(coordinator PickupCoordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := coordinator.UpdateReturnTrackingInfo(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking result missing"))
			return
		}
		responses.WriteSuccess(w, result)
	}
}
