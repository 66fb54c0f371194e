package returns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aurelia-jewels/aurelia-backend/internal/orders"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db/models"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/migrate"
	"github.com/aurelia-jewels/aurelia-backend/pkg/outbox"
	"github.com/aurelia-jewels/aurelia-backend/pkg/types"
)

type fakeSequencer struct {
	mu   sync.Mutex
	next map[string]int64
	err  error
}

func (f *fakeSequencer) DailySequence(_ context.Context, name string, at time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == nil {
		f.next = map[string]int64{}
	}
	key := name + ":" + at.Format("20060102")
	f.next[key]++
	return f.next[key], nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:returns_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrate(conn))
	return conn
}

var fixedNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, conn *gorm.DB, seq Sequencer) Service {
	t.Helper()
	if seq == nil {
		seq = &fakeSequencer{}
	}
	numbers, err := NewNumberAllocator(seq)
	require.NoError(t, err)
	numbers.now = func() time.Time { return fixedNow }
	svc, err := NewService(
		NewRepository(conn),
		orders.NewRepository(conn),
		numbers,
		db.NewFromConn(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		config.ReturnsConfig{WindowDays: 15},
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		nil,
	)
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return fixedNow }
	return svc
}

type seededOrder struct {
	order    *models.Order
	user     *models.User
	products []models.Product
}

func seedDeliveredOrder(t *testing.T, conn *gorm.DB, deliveredAgo time.Duration, qtys ...int) seededOrder {
	t.Helper()
	user := models.User{Name: "Isha Kapoor", Email: uuid.NewString()[:8] + "@example.com"}
	require.NoError(t, conn.Create(&user).Error)
	delivered := fixedNow.Add(-deliveredAgo)
	order := models.Order{
		OrderNumber:   "AUR-" + uuid.NewString()[:8],
		UserID:        user.ID,
		Status:        enums.OrderStatusDelivered,
		TotalAmount:   decimal.Zero,
		PaymentStatus: enums.PaymentStatusCompleted,
		DeliveredAt:   &delivered,
		ShippingAddress: types.Address{
			Name:       "Isha Kapoor",
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			State:      "Karnataka",
			PostalCode: "560001",
			Country:    "India",
			Phone:      "9876543210",
		},
	}
	products := make([]models.Product, 0, len(qtys))
	for i, qty := range qtys {
		price := decimal.NewFromInt(int64(5000 * (i + 1)))
		product := models.Product{SKU: "EAR-" + uuid.NewString()[:6], Name: "Diamond Stud", Price: price, Stock: 3}
		require.NoError(t, conn.Create(&product).Error)
		products = append(products, product)
		order.Items = append(order.Items, models.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			Qty:       qty,
			UnitPrice: price,
		})
		order.TotalAmount = order.TotalAmount.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	require.NoError(t, conn.Create(&order).Error)
	return seededOrder{order: &order, user: &user, products: products}
}

func TestCreateBuildsEligibleReturn(t *testing.T) {
	conn := newTestDB(t)
	seed := seedDeliveredOrder(t, conn, 3*24*time.Hour, 2, 1)
	svc := newTestService(t, conn, nil)

	ret, err := svc.Create(context.Background(), CreateInput{
		OrderID: seed.order.ID,
		UserID:  seed.user.ID,
		Items: []CreateItemInput{
			{ProductID: seed.products[0].ID, Quantity: 2, Reason: "size issue", Condition: "Sealed"},
			{ProductID: seed.products[1].ID, Quantity: 1, Reason: "changed mind"},
		},
		CustomerNote: "please pick up after 5pm",
	})
	require.NoError(t, err)
	assert.Equal(t, "RET-20260410-000001", ret.ReturnNumber)
	assert.Equal(t, enums.ReturnStatusRequested, ret.Status)
	assert.True(t, ret.IsEligibleForAutoApproval)
	assert.True(t, decimal.NewFromInt(20000).Equal(ret.RefundDetails.OriginalAmount))
	assert.Equal(t, "Bengaluru", ret.Pickup.Address.City)
	assert.Equal(t, seed.user.Email, ret.Pickup.Address.Email)
	assert.Equal(t, enums.PickupStatusPending, ret.Pickup.Status)

	loaded, err := svc.Get(context.Background(), ret.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.Equal(t, 0, loaded.Items[0].Position)
	assert.Equal(t, ConditionSealed, loaded.Items[0].Condition)
	assert.Equal(t, ConditionUnused, loaded.Items[1].Condition)
	require.Len(t, loaded.Notes, 1)
	require.NotNil(t, loaded.Order)
	require.NotNil(t, loaded.User)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReturnStatusChanged).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCreateEligibilityRules(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)

	late := seedDeliveredOrder(t, conn, 20*24*time.Hour, 1)
	ret, err := svc.Create(context.Background(), CreateInput{
		OrderID: late.order.ID,
		UserID:  late.user.ID,
		Items:   []CreateItemInput{{ProductID: late.products[0].ID, Quantity: 1, Reason: "defect"}},
	})
	require.NoError(t, err)
	assert.False(t, ret.IsEligibleForAutoApproval)

	worn := seedDeliveredOrder(t, conn, 24*time.Hour, 1)
	ret, err = svc.Create(context.Background(), CreateInput{
		OrderID: worn.order.ID,
		UserID:  worn.user.ID,
		Items:   []CreateItemInput{{ProductID: worn.products[0].ID, Quantity: 1, Reason: "defect", Condition: "used"}},
	})
	require.NoError(t, err)
	assert.False(t, ret.IsEligibleForAutoApproval)
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	conn := newTestDB(t)
	seed := seedDeliveredOrder(t, conn, 24*time.Hour, 1)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		OrderID: seed.order.ID,
		UserID:  uuid.New(),
		Items:   []CreateItemInput{{ProductID: seed.products[0].ID, Quantity: 1, Reason: "x"}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.Create(ctx, CreateInput{
		OrderID: seed.order.ID,
		UserID:  seed.user.ID,
		Items: []CreateItemInput{
			{ProductID: seed.products[0].ID, Quantity: 2, Reason: ""},
			{ProductID: uuid.New(), Quantity: 1, Reason: "x"},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "quantity 2 exceeds returnable 1")
	assert.Contains(t, err.Error(), "reason is required")
	assert.Contains(t, err.Error(), "not part of the order")

	_, err = svc.Create(ctx, CreateInput{
		OrderID: seed.order.ID,
		UserID:  seed.user.ID,
		Items: []CreateItemInput{
			{ProductID: seed.products[0].ID, Quantity: 1, Reason: "x"},
			{ProductID: seed.products[0].ID, Quantity: 1, Reason: "x"},
		},
	})
	assert.Contains(t, err.Error(), "duplicate product")

	var count int64
	require.NoError(t, conn.Model(&models.ReturnRequest{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRequiresDeliveredOrderAndNoOpenReturn(t *testing.T) {
	conn := newTestDB(t)
	seed := seedDeliveredOrder(t, conn, 24*time.Hour, 2)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()
	input := CreateInput{
		OrderID: seed.order.ID,
		UserID:  seed.user.ID,
		Items:   []CreateItemInput{{ProductID: seed.products[0].ID, Quantity: 1, Reason: "x"}},
	}

	first, err := svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = svc.Create(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: first.ID, To: enums.ReturnStatusCancelled})
	require.NoError(t, err)

	input.Items[0].Quantity = 2
	second, err := svc.Create(ctx, input)
	require.NoError(t, err, "cancelled returns release their quantity")
	assert.NotEqual(t, first.ReturnNumber, second.ReturnNumber)

	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", seed.order.ID).Update("status", enums.OrderStatusShipped).Error)
	input.Items[0].Quantity = 1
	_, err = svc.Create(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestCreatePropagatesSequencerFailure(t *testing.T) {
	conn := newTestDB(t)
	seed := seedDeliveredOrder(t, conn, 24*time.Hour, 1)
	svc := newTestService(t, conn, &fakeSequencer{err: errors.New("redis down")})

	_, err := svc.Create(context.Background(), CreateInput{
		OrderID: seed.order.ID,
		UserID:  seed.user.ID,
		Items:   []CreateItemInput{{ProductID: seed.products[0].ID, Quantity: 1, Reason: "x"}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func createReturn(t *testing.T, conn *gorm.DB, svc Service) (*models.ReturnRequest, seededOrder) {
	t.Helper()
	seed := seedDeliveredOrder(t, conn, 24*time.Hour, 1)
	ret, err := svc.Create(context.Background(), CreateInput{
		OrderID: seed.order.ID,
		UserID:  seed.user.ID,
		Items:   []CreateItemInput{{ProductID: seed.products[0].ID, Quantity: 1, Reason: "x"}},
	})
	require.NoError(t, err)
	return ret, seed
}

func TestUpdateStatusWalksStateMachine(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ret, _ := createReturn(t, conn, svc)
	ctx := context.Background()
	actor := uuid.New()
	response := "Your return has been approved"

	updated, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		ReturnID:         ret.ID,
		To:               enums.ReturnStatusApproved,
		ActorID:          &actor,
		ActorRole:        enums.RoleSupport,
		Note:             "Approved after review",
		CustomerResponse: &response,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusApproved, updated.Status)
	require.NotNil(t, updated.ApprovedAt)
	require.NotNil(t, updated.CustomerResponse)
	assert.Equal(t, response, *updated.CustomerResponse)

	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: ret.ID, To: enums.ReturnStatusApproved})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: ret.ID, To: enums.ReturnStatusRefundProcessed})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.ReturnStatusApproved.AllowedTransitions(), details["allowed"])

	awb := "AWB123"
	pickup := updated.Pickup
	pickup.ShipmentID = "SR-1"
	pickup.AWBCode = &awb
	pickup.Status = enums.PickupStatusScheduled
	updated, err = svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: ret.ID, To: enums.ReturnStatusPickupScheduled, Pickup: &pickup})
	require.NoError(t, err)
	assert.True(t, updated.Pickup.HasAWB())
	assert.Equal(t, "Bengaluru", updated.Pickup.Address.City)

	loaded, err := svc.Get(ctx, ret.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Notes, 1)
	assert.Equal(t, "Approved after review", loaded.Notes[0].Note)
	require.NotNil(t, loaded.Notes[0].AuthorID)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", ret.ID).Count(&events).Error)
	assert.Equal(t, int64(3), events)
}

func TestUpdateStatusUnknownReturn(t *testing.T) {
	svc := newTestService(t, newTestDB(t), nil)
	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{ReturnID: uuid.New(), To: enums.ReturnStatusApproved})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{ReturnID: uuid.New(), To: "shipped"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRepositoryUpdateStatusGuard(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ret, _ := createReturn(t, conn, svc)
	repo := NewRepository(conn)

	ok, err := repo.UpdateStatus(context.Background(), ret.ID, enums.ReturnStatusApproved, enums.ReturnStatusPickupScheduled, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateStatus(context.Background(), ret.ID, enums.ReturnStatusRequested, enums.ReturnStatusApproved, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddNoteAppendsAuditTrail(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ret, _ := createReturn(t, conn, svc)

	_, err := svc.AddNote(context.Background(), ret.ID, nil, "   ")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	_, err = svc.AddNote(context.Background(), uuid.New(), nil, "hello")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	note, err := svc.AddNote(context.Background(), ret.ID, nil, "Called customer")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, note.ID)
}

func TestListHelpersFilterOnPickupAndRefundState(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	requested, _ := createReturn(t, conn, svc)
	approved, _ := createReturn(t, conn, svc)
	_, err := svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: approved.ID, To: enums.ReturnStatusApproved})
	require.NoError(t, err)

	noAWB, _ := createReturn(t, conn, svc)
	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: noAWB.ID, To: enums.ReturnStatusApproved})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{
		ReturnID: noAWB.ID,
		To:       enums.ReturnStatusPickupScheduled,
		Pickup:   &types.ReturnPickup{ShipmentID: "SR-9", Status: enums.PickupStatusScheduled},
	})
	require.NoError(t, err)

	tracked, _ := createReturn(t, conn, svc)
	awb := "AWB9"
	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{ReturnID: tracked.ID, To: enums.ReturnStatusApproved})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, UpdateStatusInput{
		ReturnID: tracked.ID,
		To:       enums.ReturnStatusPickupScheduled,
		Pickup:   &types.ReturnPickup{ShipmentID: "SR-10", AWBCode: &awb, Status: enums.PickupStatusScheduled},
	})
	require.NoError(t, err)

	pending, err := svc.ListPendingAutoApproval(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, requested.ID, pending[0].ID)

	awaiting, err := svc.ListAwaitingPickup(ctx, 10)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, r := range awaiting {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{approved.ID, noAWB.ID}, ids)

	trackable, err := svc.ListTrackable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trackable, 1)
	assert.Equal(t, tracked.ID, trackable[0].ID)

	refunds, err := svc.ListPendingRefunds(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func seedReturnBacklog(t *testing.T, conn *gorm.DB, order seededOrder, n int, build func(i int, ret *models.ReturnRequest)) {
	t.Helper()
	rows := make([]models.ReturnRequest, 0, n)
	for i := 0; i < n; i++ {
		ret := models.ReturnRequest{
			ReturnNumber: fmt.Sprintf("RETOLD%05d", i),
			OrderID:      order.order.ID,
			UserID:       order.user.ID,
			CreatedAt:    fixedNow.Add(-time.Duration(n-i) * time.Minute),
		}
		build(i, &ret)
		rows = append(rows, ret)
	}
	require.NoError(t, conn.CreateInBatches(rows, 100).Error)
}

func TestListAwaitingPickupReachesPastScheduledBacklog(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, 48*time.Hour, 1)

	seedReturnBacklog(t, conn, order, 2*sweepPageSize+10, func(i int, ret *models.ReturnRequest) {
		awb := fmt.Sprintf("AWB%05d", i)
		ret.Status = enums.ReturnStatusPickupScheduled
		ret.Pickup = types.ReturnPickup{ShipmentID: fmt.Sprintf("SR%05d", i), AWBCode: &awb, Status: enums.PickupStatusScheduled}
	})
	fresh := models.ReturnRequest{
		ReturnNumber: "RETNEW00001",
		OrderID:      order.order.ID,
		UserID:       order.user.ID,
		Status:       enums.ReturnStatusApproved,
		CreatedAt:    fixedNow,
	}
	require.NoError(t, conn.Create(&fresh).Error)

	awaiting, err := svc.ListAwaitingPickup(ctx, 50)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, fresh.ID, awaiting[0].ID)
}

func TestListPendingRefundsReachesPastSettledBacklog(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()
	order := seedDeliveredOrder(t, conn, 48*time.Hour, 1)

	seedReturnBacklog(t, conn, order, sweepPageSize+5, func(i int, ret *models.ReturnRequest) {
		ret.Status = enums.ReturnStatusRefundProcessed
		ret.RefundDetails = types.RefundDetails{TransactionID: fmt.Sprintf("re_%05d", i), Status: enums.RefundStatusProcessed}
	})
	pending := models.ReturnRequest{
		ReturnNumber:  "RETNEW00002",
		OrderID:       order.order.ID,
		UserID:        order.user.ID,
		Status:        enums.ReturnStatusRefundProcessed,
		RefundDetails: types.RefundDetails{TransactionID: "re_pending", Status: enums.RefundStatusPending},
		CreatedAt:     fixedNow,
	}
	require.NoError(t, conn.Create(&pending).Error)

	refunds, err := svc.ListPendingRefunds(ctx, 50)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, pending.ID, refunds[0].ID)
}

func TestListAwaitingPickupStopsAtLimit(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn, nil)
	order := seedDeliveredOrder(t, conn, 48*time.Hour, 1)

	seedReturnBacklog(t, conn, order, 30, func(_ int, ret *models.ReturnRequest) {
		ret.Status = enums.ReturnStatusApproved
	})

	awaiting, err := svc.ListAwaitingPickup(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 10)
	assert.Equal(t, "RETOLD00000", awaiting[0].ReturnNumber)
}

func TestFormatReturnNumber(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "RET-20261231-000042", FormatReturnNumber(at, 42))
	assert.Equal(t, "RET-20261231-1234567", FormatReturnNumber(at, 1234567))

	_, err := NewNumberAllocator(nil)
	assert.Error(t, err)
}
