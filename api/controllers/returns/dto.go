package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// ReturnDTO is the API shape of a return request.
type ReturnDTO struct {
	ID                        uuid.UUID           `json:"id"`
	ReturnNumber              string              `json:"return_number"`
	OrderID                   uuid.UUID           `json:"order_id"`
	OrderNumber               string              `json:"order_number,omitempty"`
	UserID                    uuid.UUID           `json:"user_id"`
	Status                    enums.ReturnStatus  `json:"status"`
	IsEligibleForAutoApproval bool                `json:"is_eligible_for_auto_approval"`
	Pickup                    types.ReturnPickup  `json:"pickup"`
	RefundDetails             types.RefundDetails `json:"refund_details"`
	CustomerResponse          *string             `json:"customer_response,omitempty"`
	ItemsTotal                decimal.Decimal     `json:"items_total"`
	Items                     []ReturnItemDTO     `json:"items"`
	Notes                     []NoteDTO           `json:"notes"`
	ApprovedAt                *time.Time          `json:"approved_at,omitempty"`
	ReceivedAt                *time.Time          `json:"received_at,omitempty"`
	CompletedAt               *time.Time          `json:"completed_at,omitempty"`
	CancelledAt               *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt                 time.Time           `json:"created_at"`
	UpdatedAt                 time.Time           `json:"updated_at"`
}

type ReturnItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reason    string          `json:"reason"`
	Condition string          `json:"condition"`
}

type NoteDTO struct {
	ID        uuid.UUID  `json:"id"`
	Note      string     `json:"note"`
	AuthorID  *uuid.UUID `json:"author_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewReturnDTO maps a stored return to its API shape; nil maps to nil.
func NewReturnDTO(ret *models.ReturnRequest) *ReturnDTO {
	if ret == nil {
		return nil
	}
	dto := &ReturnDTO{
		ID:                        ret.ID,
		ReturnNumber:              ret.ReturnNumber,
		OrderID:                   ret.OrderID,
		UserID:                    ret.UserID,
		Status:                    ret.Status,
		IsEligibleForAutoApproval: ret.IsEligibleForAutoApproval,
		Pickup:                    ret.Pickup,
		RefundDetails:             ret.RefundDetails,
		CustomerResponse:          ret.CustomerResponse,
		ItemsTotal:                ret.ItemsTotal(),
		Items:                     make([]ReturnItemDTO, 0, len(ret.Items)),
		Notes:                     make([]NoteDTO, 0, len(ret.Notes)),
		ApprovedAt:                ret.ApprovedAt,
		ReceivedAt:                ret.ReceivedAt,
		CompletedAt:               ret.CompletedAt,
		CancelledAt:               ret.CancelledAt,
		CreatedAt:                 ret.CreatedAt,
		UpdatedAt:                 ret.UpdatedAt,
	}
	if ret.Order != nil {
		dto.OrderNumber = ret.Order.OrderNumber
	}
	for _, item := range ret.Items {
		dto.Items = append(dto.Items, ReturnItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Reason:    item.Reason,
			Condition: item.Condition,
		})
	}
	for i := range ret.Notes {
		dto.Notes = append(dto.Notes, newNoteDTO(&ret.Notes[i]))
	}
	return dto
}

func newNoteDTO(note *models.ReturnAdminNote) NoteDTO {
	return NoteDTO{
		ID:        note.ID,
		Note:      note.Note,
		AuthorID:  note.AuthorID,
		CreatedAt: note.CreatedAt,
	}
}
