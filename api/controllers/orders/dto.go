package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurelia-jewels/aurelia-backend/internal/inventory"
	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	internalorders "github.com/aurelia-jewels/aurelia-backend/internal/orders"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

type orderDTO struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Currency      string              `json:"currency"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type cancelResponse struct {
	Order          *orderDTO         `json:"order"`
	Inventory      *inventory.Result `json:"inventory,omitempty"`
	InventoryError string            `json:"inventory_error,omitempty"`
}

type notificationDTO struct {
	ID            uuid.UUID                 `json:"id"`
	Channel       enums.NotificationChannel `json:"channel"`
	Recipient     string                    `json:"recipient"`
	Subject       string                    `json:"subject"`
	Body          string                    `json:"body"`
	SentAt        *time.Time                `json:"sent_at,omitempty"`
	FailureReason *string                   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
}

type notificationPage struct {
	Items  []notificationDTO `json:"items"`
	Cursor string            `json:"cursor"`
}

func newOrderDTO(order *models.Order) *orderDTO {
	if order == nil {
		return nil
	}
	return &orderDTO{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		CancelledAt:   order.CancelledAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func newCancelResponse(result *internalorders.CancelResult) cancelResponse {
	return cancelResponse{
		Order:          newOrderDTO(result.Order),
		Inventory:      result.Inventory,
		InventoryError: result.InventoryError,
	}
}

func newNotificationPage(result *notifications.ListResult) notificationPage {
	page := notificationPage{Items: make([]notificationDTO, 0, len(result.Items)), Cursor: result.Cursor}
	for _, n := range result.Items {
		page.Items = append(page.Items, notificationDTO{
			ID:            n.ID,
			Channel:       n.Channel,
			Recipient:     n.Recipient,
			Subject:       n.Subject,
			Body:          n.Body,
			SentAt:        n.SentAt,
			FailureReason: n.FailureReason,
			CreatedAt:     n.CreatedAt,
		})
	}
	return page
}
