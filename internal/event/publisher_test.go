package event

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-backend/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "events.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StoredEvent{}))
	return NewStore(db)
}

type recordingHandler struct {
	eventType string
	seen      []model.DomainEvent
	err       error
}

func (h *recordingHandler) EventType() string { return h.eventType }

func (h *recordingHandler) Handle(_ context.Context, e model.DomainEvent) error {
	h.seen = append(h.seen, e)
	return h.err
}

func TestPublisher_StoresThenDispatches(t *testing.T) {
	store := testStore(t)
	publisher := NewPublisher(store)

	handler := &recordingHandler{eventType: model.EventTypePaymentCancelled}
	publisher.Subscribe(handler)

	ev := &model.PaymentCancelled{BaseEvent: base(), PaymentID: "p-1", OrderID: "o-1"}
	require.NoError(t, publisher.Publish(context.Background(), ev))

	require.Len(t, handler.seen, 1)
	assert.Equal(t, ev, handler.seen[0])

	stored, err := store.EventsFor(context.Background(), "p-1", model.AggregateTypePayment)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ev.EventID(), stored[0].EventID())
}

func TestPublisher_HandlerErrorStillStoresEvent(t *testing.T) {
	store := testStore(t)
	publisher := NewPublisher(store)

	boom := errors.New("downstream broken")
	publisher.Subscribe(&recordingHandler{eventType: model.EventTypePaymentCancelled, err: boom})

	ev := &model.PaymentCancelled{BaseEvent: base(), PaymentID: "p-1", OrderID: "o-1"}
	err := publisher.Publish(context.Background(), ev)
	require.ErrorIs(t, err, boom)

	stored, storeErr := store.EventsFor(context.Background(), "p-1", model.AggregateTypePayment)
	require.NoError(t, storeErr)
	assert.Len(t, stored, 1, "failed dispatch must not lose the audit row")
}

func TestPublisher_OnlyMatchingHandlersRun(t *testing.T) {
	publisher := NewPublisher(testStore(t))

	cancelled := &recordingHandler{eventType: model.EventTypePaymentCancelled}
	captured := &recordingHandler{eventType: model.EventTypePaymentCaptured}
	publisher.Subscribe(cancelled)
	publisher.Subscribe(captured)

	ev := &model.PaymentCancelled{BaseEvent: base(), PaymentID: "p-1", OrderID: "o-1"}
	require.NoError(t, publisher.Publish(context.Background(), ev))

	assert.Len(t, cancelled.seen, 1)
	assert.Empty(t, captured.seen)
}

func TestPublishAll_SequentialAndContinuesAfterFailure(t *testing.T) {
	publisher := NewPublisher(testStore(t))

	var order []string
	failing := &funcHandler{eventType: model.EventTypePaymentStatusChanged, fn: func(e model.DomainEvent) error {
		order = append(order, e.EventType())
		return errors.New("first handler down")
	}}
	succeeding := &funcHandler{eventType: model.EventTypePaymentCancelled, fn: func(e model.DomainEvent) error {
		order = append(order, e.EventType())
		return nil
	}}
	publisher.Subscribe(failing)
	publisher.Subscribe(succeeding)

	events := []model.DomainEvent{
		&model.PaymentStatusChanged{
			BaseEvent: base(), PaymentID: "p-1", OrderID: "o-1",
			OldStatus: model.PaymentStatusPending, NewStatus: model.PaymentStatusCancelled,
		},
		&model.PaymentCancelled{
			BaseEvent: model.BaseEvent{ID: "evt-2", Occurred: base().Occurred, EventVersion: 1},
			PaymentID: "p-1", OrderID: "o-1",
		},
	}

	err := publisher.PublishAll(context.Background(), events)
	require.Error(t, err, "first handler failure must surface")

	require.Equal(t, []string{
		model.EventTypePaymentStatusChanged,
		model.EventTypePaymentCancelled,
	}, order, "later events publish despite the earlier failure, in list order")
}

func TestStore_EventsForFiltersByAggregate(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, &model.PaymentCancelled{BaseEvent: base(), PaymentID: "p-1", OrderID: "o-1"}))
	require.NoError(t, store.Append(ctx, &model.OrderCreated{
		BaseEvent: model.BaseEvent{ID: "evt-2", Occurred: base().Occurred, EventVersion: 1},
		OrderID:   "o-1", Currency: "USD",
	}))

	payments, err := store.EventsFor(ctx, "p-1", model.AggregateTypePayment)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	orders, err := store.EventsFor(ctx, "o-1", model.AggregateTypeOrder)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

type funcHandler struct {
	eventType string
	fn        func(model.DomainEvent) error
}

func (h *funcHandler) EventType() string { return h.eventType }

func (h *funcHandler) Handle(_ context.Context, e model.DomainEvent) error {
	return h.fn(e)
}
