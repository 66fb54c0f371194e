package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// Order is the customer purchase a return refers to.
type Order struct {
	ID               uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string                    `gorm:"column:order_number;not null;uniqueIndex"`
	UserID           uuid.UUID                 `gorm:"column:user_id;type:uuid;not null"`
	Status           enums.OrderStatus         `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount      decimal.Decimal           `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency         string                    `gorm:"column:currency;type:text;not null;default:'INR'"`
	PaymentStatus    enums.PaymentStatus       `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentReference *string                   `gorm:"column:payment_reference"`
	PaymentMethod    string                    `gorm:"column:payment_method;type:text;not null;default:'card'"`
	PaidAt           *time.Time                `gorm:"column:paid_at"`
	ShippingAddress  types.Address             `gorm:"column:shipping_address;type:jsonb"`
	Shipment         *types.OrderShipment      `gorm:"column:shipment;type:jsonb"`
	RefundDetails    *types.OrderRefundSummary `gorm:"column:refund_details;type:jsonb"`
	RefundedAt       *time.Time                `gorm:"column:refunded_at"`
	DeliveredAt      *time.Time                `gorm:"column:delivered_at"`
	CancelledAt      *time.Time                `gorm:"column:cancelled_at"`
	Items            []OrderLineItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	User             *User                     `gorm:"foreignKey:UserID"`
	InventoryLog     []InventoryLogEntry       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// PaymentCompleted reports whether the order has a captured payment.
func (o *Order) PaymentCompleted() bool {
	return o.PaymentStatus == enums.PaymentStatusCompleted
}
