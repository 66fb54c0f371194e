package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/internal/pickups"
	"github.com/aurelia-jewels/aurelia-backend/internal/refunds"
	"github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

const (
	defaultSweepLimit = 50

	approvedResponse = "Your return has been approved. We will arrange a pickup from your address shortly."
)

// PickupAutomator schedules and tracks reverse pickups.
type PickupAutomator interface {
	AutomateReversePickup(ctx context.Context, returnID uuid.UUID) *pickups.PickupResult
	UpdateReturnTrackingInfo(ctx context.Context, returnID uuid.UUID) (*pickups.TrackingResult, error)
}

// RefundHandler issues and reconciles refunds.
type RefundHandler interface {
	HandleApprovedRefund(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID) *refunds.RefundResult
	CheckRefundStatus(ctx context.Context, returnID uuid.UUID) (*refunds.StatusResult, error)
}

// ProcessResult describes what automation did for one return.
type ProcessResult struct {
	ReturnID     uuid.UUID             `json:"return_id"`
	Status       enums.ReturnStatus    `json:"status"`
	AutoApproved bool                  `json:"auto_approved"`
	Pickup       *pickups.PickupResult `json:"pickup,omitempty"`
	Errors       []string              `json:"errors,omitempty"`
}

// Failed reports whether any automation step failed.
func (r *ProcessResult) Failed() bool {
	if len(r.Errors) > 0 {
		return true
	}
	return r.Pickup != nil && !r.Pickup.Success
}

// SweepSummary is the outcome of a batch run.
type SweepSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (s *SweepSummary) record(ok bool) {
	s.Processed++
	if ok {
		s.Succeeded++
		return
	}
	s.Failed++
}

// AdminStatusInput is an operator-driven status change.
type AdminStatusInput struct {
	ReturnID         uuid.UUID
	To               enums.ReturnStatus
	ActorID          *uuid.UUID
	ActorRole        enums.Role
	Note             string
	Reason           string
	CustomerResponse *string
	RefundAmount     *decimal.Decimal
}

// Engine drives returns forward automatically where configuration allows.
type Engine interface {
	ProcessNewReturn(ctx context.Context, returnID uuid.UUID) *ProcessResult
	ProcessPendingReturns(ctx context.Context) (*SweepSummary, error)
	ApplyAdminStatus(ctx context.Context, input AdminStatusInput) (*models.ReturnRequest, *refunds.RefundResult, error)
	UpdateTrackingForActiveReturns(ctx context.Context) (*SweepSummary, error)
	ReconcileRefunds(ctx context.Context) (*SweepSummary, error)
}

type engine struct {
	returns  returns.Service
	pickups  PickupAutomator
	refunds  RefundHandler
	notifier notifications.Notifier
	cfg      config.ReturnsConfig
	logg     *logger.Logger
	limit    int
}

// NewEngine wires the automation engine.
func NewEngine(returnsSvc returns.Service, pickupSvc PickupAutomator, refundSvc RefundHandler, notifier notifications.Notifier, cfg config.ReturnsConfig, logg *logger.Logger) (Engine, error) {
	if returnsSvc == nil {
		return nil, fmt.Errorf("returns service required")
	}
	if pickupSvc == nil {
		return nil, fmt.Errorf("pickup automator required")
	}
	if refundSvc == nil {
		return nil, fmt.Errorf("refund handler required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	limit := cfg.SweepBatchSize
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	return &engine{
		returns:  returnsSvc,
		pickups:  pickupSvc,
		refunds:  refundSvc,
		notifier: notifier,
		cfg:      cfg,
		logg:     logg,
		limit:    limit,
	}, nil
}

func (e *engine) ProcessNewReturn(ctx context.Context, returnID uuid.UUID) *ProcessResult {
	ctx = e.logg.WithReturnID(ctx, returnID.String())
	result := &ProcessResult{ReturnID: returnID}

	ret, err := e.returns.Get(ctx, returnID)
	if err != nil {
		e.logg.Error(ctx, "load return for automation failed", err)
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Status = ret.Status

	if e.cfg.AutoApprove && ret.Status == enums.ReturnStatusRequested && ret.IsEligibleForAutoApproval {
		response := approvedResponse
		updated, err := e.returns.UpdateStatus(ctx, returns.UpdateStatusInput{
			ReturnID:         ret.ID,
			To:               enums.ReturnStatusApproved,
			Note:             "Return auto-approved: delivered within the return window and all items unused or sealed",
			CustomerResponse: &response,
		})
		if err != nil {
			e.logg.Error(ctx, "auto-approval failed", err)
			e.addNote(ctx, ret.ID, "Auto-approval failed: "+err.Error()+". Review the return manually.")
			result.Errors = append(result.Errors, err.Error())
			return result
		}
		ret = updated
		result.Status = updated.Status
		result.AutoApproved = true
		e.notifier.NotifyCustomer(ctx, ret.OrderID, notifications.ReturnApproved(ret.ID, ret.ReturnNumber))
	}

	if e.cfg.AutoSchedulePickup && ret.Status == enums.ReturnStatusApproved {
		result.Pickup = e.schedulePickup(ctx, ret)
		if reloaded, err := e.returns.Get(ctx, ret.ID); err == nil {
			result.Status = reloaded.Status
		}
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"status":        result.Status,
		"auto_approved": result.AutoApproved,
		"errors":        len(result.Errors),
	}), "return automation finished")
	return result
}

// schedulePickup runs the pickup automation and records the outcome as a note.
func (e *engine) schedulePickup(ctx context.Context, ret *models.ReturnRequest) *pickups.PickupResult {
	pr := e.pickups.AutomateReversePickup(ctx, ret.ID)
	switch {
	case pr.Success && pr.FullyAutomated:
		awb := ""
		if pr.AWBCode != nil {
			awb = *pr.AWBCode
		}
		e.addNote(ctx, ret.ID, fmt.Sprintf("Pickup scheduled automatically with %s, AWB %s", pr.CourierName, awb))
	case pr.Success:
		e.addNote(ctx, ret.ID, fmt.Sprintf("Pickup shipment %s booked automatically; courier assignment is pending manual action", pr.ShipmentID))
	default:
		e.addNote(ctx, ret.ID, "Automatic pickup scheduling failed: "+pr.Error+". Schedule the pickup manually.")
	}
	return pr
}

func (e *engine) ProcessPendingReturns(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	seen := map[uuid.UUID]struct{}{}

	if e.cfg.AutoApprove {
		pending, err := e.returns.ListPendingAutoApproval(ctx, e.limit)
		if err != nil {
			return summary, err
		}
		for _, ret := range pending {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			seen[ret.ID] = struct{}{}
			res := e.ProcessNewReturn(ctx, ret.ID)
			summary.record(!res.Failed())
		}
	}

	if e.cfg.AutoSchedulePickup {
		awaiting, err := e.returns.ListAwaitingPickup(ctx, e.limit)
		if err != nil {
			return summary, err
		}
		for _, ret := range awaiting {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if _, done := seen[ret.ID]; done {
				continue
			}
			// Address or item problems need an operator to fix the data first.
			if ret.Pickup.Status == enums.PickupStatusFailed && ret.Pickup.Attempts == 0 {
				continue
			}
			retCtx := e.logg.WithReturnID(ctx, ret.ID.String())
			pr := e.schedulePickup(retCtx, &ret)
			summary.record(pr.Success)
		}
	}

	e.logSweep(ctx, "pending returns sweep finished", summary)
	return summary, nil
}

func (e *engine) ApplyAdminStatus(ctx context.Context, input AdminStatusInput) (*models.ReturnRequest, *refunds.RefundResult, error) {
	if input.ReturnID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	ctx = e.logg.WithReturnID(ctx, input.ReturnID.String())

	update := returns.UpdateStatusInput{
		ReturnID:         input.ReturnID,
		To:               input.To,
		ActorID:          input.ActorID,
		ActorRole:        input.ActorRole,
		Note:             input.Note,
		Reason:           input.Reason,
		CustomerResponse: input.CustomerResponse,
	}
	if input.RefundAmount != nil {
		if input.To != enums.ReturnStatusApprovedRefund {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount can only be set when approving a refund")
		}
		current, err := e.returns.Get(ctx, input.ReturnID)
		if err != nil {
			return nil, nil, err
		}
		amount := input.RefundAmount.Round(2)
		if !amount.IsPositive() || amount.GreaterThan(current.RefundDetails.OriginalAmount) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("refund amount must be between 0 and %s", current.RefundDetails.OriginalAmount.StringFixed(2)))
		}
		details := current.RefundDetails
		details.RefundAmount = &amount
		update.RefundDetails = &details
	}
	if input.To == enums.ReturnStatusRejected || input.To == enums.ReturnStatusRejectedRefund {
		if strings.TrimSpace(input.Reason) == "" {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
		}
	}

	ret, err := e.returns.UpdateStatus(ctx, update)
	if err != nil {
		return nil, nil, err
	}

	switch input.To {
	case enums.ReturnStatusApproved:
		e.notifier.NotifyCustomer(ctx, ret.OrderID, notifications.ReturnApproved(ret.ID, ret.ReturnNumber))
	case enums.ReturnStatusRejected, enums.ReturnStatusRejectedRefund:
		e.notifier.NotifyCustomer(ctx, ret.OrderID, notifications.ReturnRejected(ret.ID, ret.ReturnNumber, input.Reason))
	case enums.ReturnStatusReceived:
		e.notifier.NotifyCustomer(ctx, ret.OrderID, notifications.ReturnReceived(ret.ID, ret.ReturnNumber))
	case enums.ReturnStatusApprovedRefund:
		refund := e.refunds.HandleApprovedRefund(ctx, ret.ID, input.ActorID)
		if refund.RequiresManualProcessing {
			e.logg.Warn(ctx, "refund left for manual processing")
		}
		reloaded, err := e.returns.Get(ctx, ret.ID)
		if err != nil {
			return ret, refund, nil
		}
		return reloaded, refund, nil
	}
	return ret, nil, nil
}

func (e *engine) UpdateTrackingForActiveReturns(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	active, err := e.returns.ListTrackable(ctx, e.limit)
	if err != nil {
		return summary, err
	}
	for _, ret := range active {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		retCtx := e.logg.WithReturnID(ctx, ret.ID.String())
		if _, err := e.pickups.UpdateReturnTrackingInfo(retCtx, ret.ID); err != nil {
			e.logg.Warn(retCtx, "tracking update failed: "+err.Error())
			summary.record(false)
			continue
		}
		summary.record(true)
	}
	e.logSweep(ctx, "tracking sweep finished", summary)
	return summary, nil
}

func (e *engine) ReconcileRefunds(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}
	pending, err := e.returns.ListPendingRefunds(ctx, e.limit)
	if err != nil {
		return summary, err
	}
	for _, ret := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		retCtx := e.logg.WithReturnID(ctx, ret.ID.String())
		if _, err := e.refunds.CheckRefundStatus(retCtx, ret.ID); err != nil {
			e.logg.Warn(retCtx, "refund reconciliation failed: "+err.Error())
			summary.record(false)
			continue
		}
		summary.record(true)
	}
	e.logSweep(ctx, "refund reconciliation finished", summary)
	return summary, nil
}

func (e *engine) addNote(ctx context.Context, returnID uuid.UUID, note string) {
	if _, err := e.returns.AddNote(ctx, returnID, nil, note); err != nil {
		e.logg.Error(ctx, "append automation note failed", err)
	}
}

func (e *engine) logSweep(ctx context.Context, msg string, s *SweepSummary) {
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"processed": s.Processed,
		"succeeded": s.Succeeded,
		"failed":    s.Failed,
	}), msg)
}
