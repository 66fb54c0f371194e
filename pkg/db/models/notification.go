package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
)

// CustomerNotification records a message delivered (or attempted) to a customer.
type CustomerNotification struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	OrderID       uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	UserID        *uuid.UUID                `gorm:"column:user_id;type:uuid"`
	Channel       enums.NotificationChannel `gorm:"column:channel;type:text;not null"`
	Recipient     string                    `gorm:"column:recipient;not null"`
	Subject       string                    `gorm:"column:subject;not null"`
	Body          string                    `gorm:"column:body;type:text;not null"`
	SentAt        *time.Time                `gorm:"column:sent_at"`
	FailureReason *string                   `gorm:"column:failure_reason"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (n *CustomerNotification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
