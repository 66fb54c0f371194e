package returns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	"github.com/aurelia-jewels/aurelia-backend/pkg/pagination"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

// Repository defines persistence operations for return requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, ret *models.ReturnRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	ListByStatus(ctx context.Context, statuses []enums.ReturnStatus, after *pagination.Cursor, limit int) ([]models.ReturnRequest, error)
	ListEligibleRequested(ctx context.Context, limit int) ([]models.ReturnRequest, error)
	CountActiveForOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, updates map[string]any) (bool, error)
	SavePickup(ctx context.Context, id uuid.UUID, pickup types.ReturnPickup) error
	SaveRefundDetails(ctx context.Context, id uuid.UUID, details types.RefundDetails) error
	AppendNote(ctx context.Context, note *models.ReturnAdminNote) error
}

// closedStatuses are the terminal states that no longer count as an open return.
var closedStatuses = []enums.ReturnStatus{
	enums.ReturnStatusCompleted,
	enums.ReturnStatusCancelled,
	enums.ReturnStatusRejected,
	enums.ReturnStatusRejectedRefund,
}

// releasedStatuses give their quantities back to the order.
var releasedStatuses = []enums.ReturnStatus{
	enums.ReturnStatusCancelled,
	enums.ReturnStatusRejected,
	enums.ReturnStatusRejectedRefund,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a returns repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ret *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items", orderByPosition).
		Where("id = ?", id).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// FindDetailed loads the return with its order, customer and audit trail.
func (r *repository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Preload("Items", orderByPosition).
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Order").
		Preload("Order.Items").
		Preload("User").
		Where("id = ?", id).
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// ListByStatus pages through returns in the given statuses oldest first,
// resuming strictly after the cursor when one is given.
func (r *repository) ListByStatus(ctx context.Context, statuses []enums.ReturnStatus, after *pagination.Cursor, limit int) ([]models.ReturnRequest, error) {
	query := r.db.WithContext(ctx).Where("status IN ?", statuses)
	if after != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))",
			after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.ReturnRequest
	err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListEligibleRequested(ctx context.Context, limit int) ([]models.ReturnRequest, error) {
	var rows []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_eligible_for_auto_approval = ?", enums.ReturnStatusRequested, true).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountActiveForOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("order_id = ? AND status NOT IN ?", orderID, closedStatuses).
		Count(&count).Error
	return count, err
}

// ReturnedQuantities sums quantities per product across the order's returns
// that are still live or already refunded.
func (r *repository) ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		ProductID uuid.UUID
		Total     int
	}
	err := r.db.WithContext(ctx).
		Table("return_items").
		Select("return_items.product_id AS product_id, SUM(return_items.quantity) AS total").
		Joins("JOIN return_requests ON return_requests.id = return_items.return_id").
		Where("return_requests.order_id = ?", orderID).
		Where("return_requests.status NOT IN ?", releasedStatuses).
		Group("return_items.product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// UpdateStatus moves the return from one status to another. It reports false
// when the row was no longer in the expected status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.ReturnStatus, updates map[string]any) (bool, error) {
	values := map[string]any{}
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SavePickup(ctx context.Context, id uuid.UUID, pickup types.ReturnPickup) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Update("pickup", pickup).Error
}

func (r *repository) SaveRefundDetails(ctx context.Context, id uuid.UUID, details types.RefundDetails) error {
	return r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ?", id).
		Update("refund_details", details).Error
}

func (r *repository) AppendNote(ctx context.Context, note *models.ReturnAdminNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
