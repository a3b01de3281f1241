package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a lifecycle event recorded on an order timeline.
type Action string

const (
	ActionCreated       Action = "created"
	ActionEdited        Action = "edited"
	ActionStarted       Action = "started"
	ActionStatusChanged Action = "status_changed"
	ActionReturned      Action = "returned"
	ActionExpired       Action = "expired"
)

// IsValid reports whether the action is known.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionEdited, ActionStarted, ActionStatusChanged, ActionReturned, ActionExpired:
		return true
	default:
		return false
	}
}

// Entry is one append-only timeline record. Statuses are stored as plain
// strings so the log stays readable even if the order model evolves.
type Entry struct {
	ID             int64     `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	Action         Action    `json:"action"`
	PreviousStatus *string   `json:"previous_status,omitempty"`
	NewStatus      *string   `json:"new_status,omitempty"`
	Notes          string    `json:"notes"`
	ActorID        int64     `json:"actor_id"`
	CreatedAt      time.Time `json:"timestamp"`
}

// TimelineFilters selects one order's timeline page.
type TimelineFilters struct {
	OrderID  uuid.UUID
	Page     int
	PageSize int
}

// PagingInfo describes the neighbours of a timeline page.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is one timeline page.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
