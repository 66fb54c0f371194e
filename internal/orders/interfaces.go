package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/pagination"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// Repository defines persistence operations for customer orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, summary types.OrderRefundSummary) error
	UpdateShipment(ctx context.Context, id uuid.UUID, shipment types.OrderShipment) error
	ListAwaitingShipment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	ListByStatus(ctx context.Context, status enums.OrderStatus, limit int) ([]models.Order, error)
	ListByStatusAfter(ctx context.Context, status enums.OrderStatus, after *pagination.Cursor, limit int) ([]models.Order, error)
}
