package returns

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/aurelia-jewels/aurelia-backend/api/middleware"
	"github.com/aurelia-jewels/aurelia-backend/api/responses"
	"github.com/aurelia-jewels/aurelia-backend/api/validators"
	"github.com/aurelia-jewels/aurelia-backend/internal/automation"
	internalreturns "github.com/aurelia-jewels/aurelia-backend/internal/returns"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

type returnStore interface {
	Create(ctx context.Context, input internalreturns.CreateInput) (*models.ReturnRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
}

type newReturnProcessor interface {
	ProcessNewReturn(ctx context.Context, returnID uuid.UUID) *automation.ProcessResult
}

type createReturnItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=500"`
	Condition string `json:"condition" validate:"required,oneof=unused sealed used damaged"`
}

type createReturnRequest struct {
	OrderID       string             `json:"order_id" validate:"required,uuid"`
	Items         []createReturnItem `json:"items" validate:"required,min=1,dive"`
	PickupAddress *types.Address     `json:"pickup_address,omitempty"`
	CustomerNote  string             `json:"customer_note" validate:"max=1000"`
}

type createReturnResponse struct {
	Return     *ReturnDTO                `json:"return"`
	Automation *automation.ProcessResult `json:"automation"`
}

// CreateReturn records a customer's return request and runs automation on it.
func CreateReturn(store returnStore, engine newReturnProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}
		actorID := middleware.ActorIDFromContext(r.Context())
		if actorID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var body createReturnRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalreturns.CreateInput{
			OrderID:       uuid.MustParse(body.OrderID),
			UserID:        *actorID,
			PickupAddress: body.PickupAddress,
			CustomerNote:  validators.SanitizeString(body.CustomerNote, 1000),
		}
		for _, item := range body.Items {
			input.Items = append(input.Items, internalreturns.CreateItemInput{
				ProductID: uuid.MustParse(item.ProductID),
				Quantity:  item.Quantity,
				Reason:    validators.SanitizeString(item.Reason, 500),
				Condition: item.Condition,
			})
		}

		created, err := store.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := engine.ProcessNewReturn(r.Context(), created.ID)
		current, err := store.Get(r.Context(), created.ID)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithReturnID(r.Context(), created.ID.String()), "reload after automation failed")
			}
			current = created
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createReturnResponse{Return: NewReturnDTO(current), Automation: result})
	}
}
