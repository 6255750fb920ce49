package event

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestPublish_DispatchesByName(t *testing.T) {
	bus := NewBus()

	var created, all []string
	bus.Subscribe(OrderCreated{}.EventName(), func(_ context.Context, e Event) error {
		created = append(created, e.EventName())
		return nil
	})
	bus.SubscribeAll(func(_ context.Context, e Event) error {
		all = append(all, e.EventName())
		return nil
	})

	bus.Publish(context.Background(), OrderCreated{OrderID: "o1"})
	bus.Publish(context.Background(), InventoryLow{ProductID: 1})

	assert.Equal(t, []string{"order.created"}, created)
	assert.Equal(t, []string{"order.created", "inventory.low"}, all)
}

func TestPublish_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	var reached bool
	bus.SubscribeAll(func(_ context.Context, _ Event) error {
		return errors.New("notifier down")
	})
	bus.SubscribeAll(func(_ context.Context, _ Event) error {
		reached = true
		return nil
	})

	bus.Publish(context.Background(), OrderCreated{OrderID: "o1"})
	assert.True(t, reached)
}

func TestPublish_HandlerPanicRecovered(t *testing.T) {
	bus := NewBus()

	bus.SubscribeAll(func(_ context.Context, _ Event) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), OrderCreated{OrderID: "o1"})
	})
}

func TestPublish_NilBus(t *testing.T) {
	var bus *Bus

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), OrderCreated{OrderID: "o1"})
	})
}
