package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event types, used as the CartEvent.Type and the event-type header.
const (
	CartCreated     = "cart.created"
	CartItemAdded   = "cart.item.added"
	CartItemUpdated = "cart.item.updated"
	CartItemRemoved = "cart.item.removed"
	CartCheckedOut  = "cart.checked_out"
)

// CartEvent describes a persisted cart mutation.
type CartEvent struct {
	Type       string          `json:"type"`
	CartID     string          `json:"cartId"`
	Email      string          `json:"email"`
	ProductID  string          `json:"productId,omitempty"`
	Quantity   int             `json:"quantity,omitempty"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publisher ships cart events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev CartEvent) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

// Publish discards ev.
func (Nop) Publish(context.Context, CartEvent) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
