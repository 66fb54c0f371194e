package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// ReturnRequest is a customer's request to send purchased items back.
type ReturnRequest struct {
	ID                        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ReturnNumber              string              `gorm:"column:return_number;not null;uniqueIndex"`
	OrderID                   uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	UserID                    uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status                    enums.ReturnStatus  `gorm:"column:status;type:text;not null;default:'requested';index"`
	IsEligibleForAutoApproval bool                `gorm:"column:is_eligible_for_auto_approval;not null;default:false"`
	Pickup                    types.ReturnPickup  `gorm:"column:pickup;type:jsonb"`
	RefundDetails             types.RefundDetails `gorm:"column:refund_details;type:jsonb"`
	CustomerResponse          *string             `gorm:"column:customer_response"`
	ApprovedAt                *time.Time          `gorm:"column:approved_at"`
	ReceivedAt                *time.Time          `gorm:"column:received_at"`
	CompletedAt               *time.Time          `gorm:"column:completed_at"`
	CancelledAt               *time.Time          `gorm:"column:cancelled_at"`
	Items                     []ReturnItem        `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
	Notes                     []ReturnAdminNote   `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
	Order                     *Order              `gorm:"foreignKey:OrderID"`
	User                      *User               `gorm:"foreignKey:UserID"`
	CreatedAt                 time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *ReturnRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ItemCount sums the returned quantities.
func (r *ReturnRequest) ItemCount() int {
	total := 0
	for _, item := range r.Items {
		total += item.Quantity
	}
	return total
}

// ItemsTotal sums quantity times unit price across the returned items.
func (r *ReturnRequest) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ReturnItem is one line of a return request.
type ReturnItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ReturnID  uuid.UUID       `gorm:"column:return_id;type:uuid;not null;index"`
	Position  int             `gorm:"column:position;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	SKU       string          `gorm:"column:sku"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Reason    string          `gorm:"column:reason;not null"`
	Condition string          `gorm:"column:condition;not null;default:'unused'"`
}

func (i *ReturnItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// ReturnAdminNote is one entry of the append-only operator audit trail.
type ReturnAdminNote struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ReturnID  uuid.UUID  `gorm:"column:return_id;type:uuid;not null;index"`
	Note      string     `gorm:"column:note;type:text;not null"`
	AuthorID  *uuid.UUID `gorm:"column:author_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (n *ReturnAdminNote) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
