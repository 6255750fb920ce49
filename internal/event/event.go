// Package event carries the checkout core's domain events to best-effort
// collaborators (email, realtime updates, analytics pipelines). Delivery is
// fire-and-forget: a failed handler is logged and never fails the operation
// that emitted the event.
package event

import "time"

// Event is a domain event with a stable name for routing.
type Event interface {
	EventName() string
}

// OrderCreated fires after an order is persisted at checkout.
type OrderCreated struct {
	OrderID     string
	OrderNumber string
	UserID      string
	Total       string
	OccurredAt  time.Time
}

func (OrderCreated) EventName() string { return "order.created" }

// OrderStatusChanged fires on every fulfilment or cancellation transition.
type OrderStatusChanged struct {
	OrderID    string
	UserID     string
	From       string
	To         string
	Reason     string
	OccurredAt time.Time
}

func (OrderStatusChanged) EventName() string { return "order.status_changed" }

// PaymentSettled fires when an order's payment status reaches a terminal
// outcome through confirmation or a webhook.
type PaymentSettled struct {
	OrderID    string
	Outcome    string
	OccurredAt time.Time
}

func (PaymentSettled) EventName() string { return "payment.settled" }

// InventoryLow fires when a reservation drives a product's stock to or below
// the configured threshold.
type InventoryLow struct {
	ProductID  int64
	Stock      int
	Threshold  int
	OccurredAt time.Time
}

func (InventoryLow) EventName() string { return "inventory.low" }
