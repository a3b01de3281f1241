// Package changefeed carries branch scoped "something changed" notifications.
// Payloads are refetch hints only; consumers never trust them as state.
package changefeed

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entity names the kind of record that changed.
type Entity string

const (
	EntityOrder Entity = "order"
	EntityItem  Entity = "item"
)

// Kind names the change.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is one change notification.
type Event struct {
	Entity   Entity    `json:"entity"`
	ID       uuid.UUID `json:"id"`
	OrderID  uuid.UUID `json:"order_id"`
	BranchID int64     `json:"branch_id"`
	Kind     Kind      `json:"event"`
	At       time.Time `json:"at"`
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Subscriber streams change events of one branch until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, branchID int64) (<-chan Event, error)
}
