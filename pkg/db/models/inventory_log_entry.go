package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// InventoryLogEntry is an append-only audit of one reserve or restore run
// against an order. Current stock lives on Product only.
type InventoryLogEntry struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	Action             enums.InventoryAction  `gorm:"column:action;type:text;not null"`
	Reason             string                 `gorm:"column:reason;not null"`
	TotalItemsAffected int                    `gorm:"column:total_items_affected;not null"`
	ProductsUpdated    int                    `gorm:"column:products_updated;not null"`
	Details            types.InventoryDetails `gorm:"column:details;type:jsonb;not null"`
	Errors             types.InventoryErrors  `gorm:"column:errors;type:jsonb;not null"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (e *InventoryLogEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
