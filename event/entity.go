package event

import (
	"time"

	"maintflow/domain"

	"github.com/fundwit/go-commons/types"
)

const (
	EventCategoryCreated      = "CREATED"
	EventCategoryTransitioned = "TRANSITIONED"
)

type EventCategory string

// TransitionEvent describes a committed state change, it is published after the store write.
type TransitionEvent struct {
	EntityID  types.ID      `json:"entityId"`
	Kind      domain.Kind   `json:"kind"`
	Title     string        `json:"title"`
	Amount    domain.Amount `json:"amount"`
	FromState domain.State  `json:"fromState"`
	ToState   domain.State  `json:"toState"`

	ActorID   types.ID `json:"actorId"`
	ActorRole string   `json:"actorRole"`

	EventCategory       EventCategory `json:"eventCategory"`
	Severity            string        `json:"severity,omitempty"`
	NotificationsSent   int           `json:"notificationsSent"`
	NotificationsFailed int           `json:"notificationsFailed"`

	Timestamp time.Time `json:"timestamp"`
}
