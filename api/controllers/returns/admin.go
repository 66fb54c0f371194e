package returns

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurelia-jewels/aurelia-backend/api/middleware"
	"github.com/aurelia-jewels/aurelia-backend/api/responses"
	"github.com/aurelia-jewels/aurelia-backend/api/validators"
	"github.com/aurelia-jewels/aurelia-backend/internal/automation"
	"github.com/aurelia-jewels/aurelia-backend/internal/refunds"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

type returnReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
}

type noteWriter interface {
	AddNote(ctx context.Context, returnID uuid.UUID, actorID *uuid.UUID, note string) (*models.ReturnAdminNote, error)
}

type adminEngine interface {
	ProcessNewReturn(ctx context.Context, returnID uuid.UUID) *automation.ProcessResult
	ApplyAdminStatus(ctx context.Context, input automation.AdminStatusInput) (*models.ReturnRequest, *refunds.RefundResult, error)
}

type updateStatusRequest struct {
	Status           string           `json:"status" validate:"required"`
	Note             string           `json:"note" validate:"max=2000"`
	Reason           string           `json:"reason" validate:"max=1000"`
	CustomerResponse *string          `json:"customer_response,omitempty"`
	RefundAmount     *decimal.Decimal `json:"refund_amount,omitempty"`
}

type updateStatusResponse struct {
	Return *ReturnDTO            `json:"return"`
	Refund *refunds.RefundResult `json:"refund,omitempty"`
}

type addNoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// Get loads a return with its order, items and notes.
func Get(store returnReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ret, err := store.Get(r.Context(), returnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewReturnDTO(ret))
	}
}

// Process reruns approval and pickup automation for one return.
func Process(engine adminEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, engine.ProcessNewReturn(r.Context(), returnID))
	}
}

// UpdateStatus applies an operator status change through the state machine.
func UpdateStatus(engine adminEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseReturnStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		ret, refund, err := engine.ApplyAdminStatus(r.Context(), automation.AdminStatusInput{
			ReturnID:         returnID,
			To:               status,
			ActorID:          middleware.ActorIDFromContext(r.Context()),
			ActorRole:        middleware.RoleFromContext(r.Context()),
			Note:             validators.SanitizeString(body.Note, 2000),
			Reason:           validators.SanitizeString(body.Reason, 1000),
			CustomerResponse: body.CustomerResponse,
			RefundAmount:     body.RefundAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updateStatusResponse{Return: NewReturnDTO(ret), Refund: refund})
	}
}

// AddNote appends an operator note to the return history.
func AddNote(store noteWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnID, err := parseReturnID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addNoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note, err := store.AddNote(r.Context(), returnID, middleware.ActorIDFromContext(r.Context()), validators.SanitizeString(body.Note, 2000))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newNoteDTO(note))
	}
}
