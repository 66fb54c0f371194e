package inventory

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/pkg/db"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/migrate"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrate(conn))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(
		NewRepository(conn),
		db.NewFromConn(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		logg,
		nil,
	)
	require.NoError(t, err)
	return svc
}

type lineSeed struct {
	stock int
	qty   int
}

func seedOrder(t *testing.T, conn *gorm.DB, lines ...lineSeed) (*models.Order, []models.Product) {
	t.Helper()
	user := models.User{Name: "Meera Iyer", Email: "meera@example.com"}
	require.NoError(t, conn.Create(&user).Error)

	products := make([]models.Product, 0, len(lines))
	order := models.Order{
		OrderNumber:   "AUR-" + uuid.NewString()[:8],
		UserID:        user.ID,
		Status:        enums.OrderStatusConfirmed,
		TotalAmount:   decimal.NewFromInt(0),
		PaymentStatus: enums.PaymentStatusCompleted,
	}
	require.NoError(t, conn.Create(&order).Error)
	for i, line := range lines {
		product := models.Product{
			SKU:   "RING-" + uuid.NewString()[:6],
			Name:  "Gold Ring",
			Price: decimal.NewFromInt(12000),
			Stock: line.stock,
		}
		require.NoError(t, conn.Create(&product).Error)
		products = append(products, product)
		item := models.OrderLineItem{
			OrderID:   order.ID,
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			Qty:       line.qty,
			UnitPrice: product.Price,
		}
		require.NoError(t, conn.Create(&item).Error, "line %d", i)
	}
	return &order, products
}

func stockOf(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func TestRestoreAddsQuantitiesBack(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order, products := seedOrder(t, conn, lineSeed{stock: 4, qty: 2}, lineSeed{stock: 0, qty: 1})

	res, err := svc.Restore(context.Background(), order.ID, ReasonOrderCancelled)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.PartialRestore)
	assert.Equal(t, 3, res.TotalItemsAffected)
	assert.Equal(t, 2, res.ProductsUpdated)
	require.Len(t, res.Details, 2)
	assert.Equal(t, 6, stockOf(t, conn, products[0].ID))
	assert.Equal(t, 1, stockOf(t, conn, products[1].ID))

	var entries []models.InventoryLogEntry
	require.NoError(t, conn.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.InventoryActionRestore, entries[0].Action)
	assert.Equal(t, ReasonOrderCancelled, entries[0].Reason)
	assert.Len(t, entries[0].Details, 2)
	assert.Empty(t, entries[0].Errors)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInventoryAdjusted).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}

func TestRestoreIsAdditiveAcrossRuns(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order, products := seedOrder(t, conn, lineSeed{stock: 1, qty: 2})

	for i := 0; i < 2; i++ {
		_, err := svc.Restore(context.Background(), order.ID, ReasonRefundSuccessful)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, stockOf(t, conn, products[0].ID))
}

func TestRestoreMissingProductIsPartial(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order, products := seedOrder(t, conn, lineSeed{stock: 2, qty: 1})
	ghost := models.OrderLineItem{
		OrderID:   order.ID,
		ProductID: uuid.New(),
		Name:      "Discontinued Pendant",
		SKU:       "PEND-0",
		Qty:       1,
		UnitPrice: decimal.NewFromInt(5000),
	}
	require.NoError(t, conn.Create(&ghost).Error)

	res, err := svc.Restore(context.Background(), order.ID, ReasonRefundSuccessful)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.PartialRestore)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ReasonProductNotFound, res.Errors[0].Reason)
	assert.Equal(t, "Discontinued Pendant", res.Errors[0].Name)
	assert.Equal(t, 3, stockOf(t, conn, products[0].ID))
}

func TestReserveNeverOversells(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order, products := seedOrder(t, conn, lineSeed{stock: 1, qty: 3}, lineSeed{stock: 5, qty: 2})

	res, err := svc.Reserve(context.Background(), order.ID)
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	failed := res.Errors[0]
	assert.Equal(t, products[0].ID, failed.ProductID)
	assert.Equal(t, ReasonInsufficientStock, failed.Reason)
	assert.Equal(t, 3, failed.Requested)
	require.NotNil(t, failed.Available)
	assert.Equal(t, 1, *failed.Available)

	assert.Equal(t, 1, stockOf(t, conn, products[0].ID))
	assert.Equal(t, 3, stockOf(t, conn, products[1].ID))
	assert.Equal(t, 2, res.TotalItemsAffected)
	assert.Equal(t, 1, res.ProductsUpdated)
}

func TestReserveExactStockSucceeds(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order, products := seedOrder(t, conn, lineSeed{stock: 2, qty: 2})

	res, err := svc.Reserve(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, stockOf(t, conn, products[0].ID))
	assert.Equal(t, 2, res.Details[0].PreviousStock)
	assert.Equal(t, 0, res.Details[0].NewStock)
}

func TestRestoreItemsOnlyTouchesSubset(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	order, products := seedOrder(t, conn, lineSeed{stock: 0, qty: 1}, lineSeed{stock: 0, qty: 1})

	res, err := svc.RestoreItems(context.Background(), order.ID, ReasonRefundSuccessful, []Item{
		{ProductID: products[1].ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProductsUpdated)
	assert.Equal(t, "Gold Ring", res.Details[0].Name)
	assert.Equal(t, 0, stockOf(t, conn, products[0].ID))
	assert.Equal(t, 1, stockOf(t, conn, products[1].ID))

	_, err = svc.RestoreItems(context.Background(), order.ID, ReasonRefundSuccessful, nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestAdjustOrderErrors(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.Restore(context.Background(), uuid.New(), ReasonRefundSuccessful)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	empty, _ := seedOrder(t, conn)
	_, err = svc.Reserve(context.Background(), empty.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	var entries int64
	require.NoError(t, conn.Model(&models.InventoryLogEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

// staleReadRepository serves product reads that lag behind the row, as when
// another order moved the stock between the read and the update.
type staleReadRepository struct {
	Repository
	lag int
}

func (r staleReadRepository) WithTx(tx *gorm.DB) Repository {
	return staleReadRepository{Repository: r.Repository.WithTx(tx), lag: r.lag}
}

func (r staleReadRepository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := r.Repository.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.Stock -= r.lag
	return product, nil
}

func TestAuditLogUsesStockWrittenByUpdate(t *testing.T) {
	conn := newTestDB(t)
	order, products := seedOrder(t, conn, lineSeed{stock: 10, qty: 2})
	svc, err := NewService(
		staleReadRepository{Repository: NewRepository(conn), lag: 4},
		db.NewFromConn(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		nil,
	)
	require.NoError(t, err)

	res, err := svc.Reserve(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, res.Details, 1)
	assert.Equal(t, 10, res.Details[0].PreviousStock)
	assert.Equal(t, 8, res.Details[0].NewStock)

	res, err = svc.Restore(context.Background(), order.ID, ReasonOrderCancelled)
	require.NoError(t, err)
	require.Len(t, res.Details, 1)
	assert.Equal(t, 8, res.Details[0].PreviousStock)
	assert.Equal(t, 10, res.Details[0].NewStock)
	assert.Equal(t, 10, stockOf(t, conn, products[0].ID))
}

func TestRepositoryStockUpdatesReturnWrittenValue(t *testing.T) {
	conn := newTestDB(t)
	_, products := seedOrder(t, conn, lineSeed{stock: 3, qty: 1})
	repo := NewRepository(conn)
	ctx := context.Background()

	stock, ok, err := repo.DecrementStock(ctx, products[0].ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, stock)

	_, ok, err = repo.DecrementStock(ctx, products[0].ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, stockOf(t, conn, products[0].ID))

	stock, ok, err = repo.IncrementStock(ctx, products[0].ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, stock)

	_, ok, err = repo.IncrementStock(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
