package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/internal/inventory"
	"github.com/aurelia-jewels/aurelia-backend/internal/notifications"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

type recordingNotifier struct {
	messages []notifications.Message
}

func (r *recordingNotifier) NotifyCustomer(_ context.Context, _ uuid.UUID, msg notifications.Message) {
	r.messages = append(r.messages, msg)
}

type failingRestorer struct{}

func (failingRestorer) Restore(context.Context, uuid.UUID, string) (*inventory.Result, error) {
	return nil, errors.New("db unavailable")
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newServiceForTest(t *testing.T, conn *gorm.DB, restorer StockRestorer) (Service, *recordingNotifier) {
	t.Helper()
	logg := newTestLogger()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)
	if restorer == nil {
		inv, err := inventory.NewService(inventory.NewRepository(conn), db.NewFromConn(conn), outboxSvc, logg, nil)
		require.NoError(t, err)
		restorer = inv
	}
	notifier := &recordingNotifier{}
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn), outboxSvc, restorer, notifier, logg)
	require.NoError(t, err)
	return svc, notifier
}

func TestCancelRestoresStockAndNotifies(t *testing.T) {
	conn := setupOrdersTestDB(t)
	order, product := seedOrder(t, conn, orderSeed{status: enums.OrderStatusConfirmed, stock: 4, qty: 2})
	svc, notifier := newServiceForTest(t, conn, nil)

	actor := uuid.New()
	res, err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, ActorID: &actor, Reason: "customer changed mind"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, res.Order.Status)
	require.NotNil(t, res.Inventory)
	assert.True(t, res.Inventory.Success)
	assert.Equal(t, 2, res.Inventory.TotalItemsAffected)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 6, stored.Stock)

	var entry models.InventoryLogEntry
	require.NoError(t, conn.First(&entry, "order_id = ?", order.ID).Error)
	assert.Equal(t, inventory.ReasonOrderCancelled, entry.Reason)

	var cancelled int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCancelled).Count(&cancelled).Error)
	assert.Equal(t, int64(1), cancelled)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, notifications.KindOrderCancelled, notifier.messages[0].Kind)
}

func TestCancelRejectsShippedOrders(t *testing.T) {
	conn := setupOrdersTestDB(t)
	shipped, _ := seedOrder(t, conn, orderSeed{status: enums.OrderStatusShipped})
	handedOver, _ := seedOrder(t, conn, orderSeed{
		status:   enums.OrderStatusConfirmed,
		shipment: &types.OrderShipment{AWBCode: "AWB77", Status: enums.ShipmentStatusPickupScheduled},
	})
	svc, notifier := newServiceForTest(t, conn, nil)

	for _, id := range []uuid.UUID{shipped.ID, handedOver.ID} {
		_, err := svc.Cancel(context.Background(), CancelInput{OrderID: id, Reason: "late"})
		require.Error(t, err)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	}
	assert.Empty(t, notifier.messages)
}

func TestCancelValidation(t *testing.T) {
	conn := setupOrdersTestDB(t)
	svc, _ := newServiceForTest(t, conn, nil)

	_, err := svc.Cancel(context.Background(), CancelInput{OrderID: uuid.New()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.Cancel(context.Background(), CancelInput{OrderID: uuid.New(), Reason: "x"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestCancelKeepsCancellationWhenRestoreFails(t *testing.T) {
	conn := setupOrdersTestDB(t)
	order, _ := seedOrder(t, conn, orderSeed{status: enums.OrderStatusPending, stock: 1})
	svc, notifier := newServiceForTest(t, conn, failingRestorer{})

	res, err := svc.Cancel(context.Background(), CancelInput{OrderID: order.ID, Reason: "payment timeout"})
	require.NoError(t, err)
	assert.Nil(t, res.Inventory)
	assert.Contains(t, res.InventoryError, "db unavailable")
	assert.Len(t, notifier.messages, 1)

	loaded, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, loaded.Status)
	assert.NotNil(t, loaded.CancelledAt)
}
