package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
)

// Repository persists stock changes and the inventory audit log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error)
	InsertLogEntry(ctx context.Context, entry *models.InventoryLogEntry) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// IncrementStock adds qty and returns the stock written by the update. It
// reports false when the product no longer exists.
func (r *repository) IncrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	return r.updateStock(ctx, `
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING stock
	`, qty, productID)
}

// DecrementStock subtracts qty only when enough stock remains and returns the
// stock written by the update. It reports false when the floor check rejected
// the update.
func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, bool, error) {
	return r.updateStock(ctx, `
		UPDATE products
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
		RETURNING stock
	`, qty, productID, qty)
}

func (r *repository) updateStock(ctx context.Context, query string, args ...any) (int, bool, error) {
	var stock []int
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&stock).Error; err != nil {
		return 0, false, err
	}
	if len(stock) == 0 {
		return 0, false, nil
	}
	return stock[0], true, nil
}

func (r *repository) InsertLogEntry(ctx context.Context, entry *models.InventoryLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
