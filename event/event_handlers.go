package event

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EventHandler reacts to a committed transition. It returns nil when the event is not of its concern.
type EventHandler func(e *TransitionEvent) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

// invokeHandlers runs every handler in registration order. The transition is already committed,
// so a failing or panicking handler only yields a failed result.
func invokeHandlers(e *TransitionEvent) []EventHandleResult {
	results := []EventHandleResult{}
	fields := logrus.Fields{"entityId": e.EntityID, "from": e.FromState, "to": e.ToState, "category": e.EventCategory}
	for i, handler := range EventHandlers {
		r := invokeSafely(i, handler, e)
		if r == nil {
			continue
		}
		results = append(results, *r)

		entry := logrus.WithFields(fields).WithField("handler", r.HandlerIdentifier)
		if r.Success {
			entry.Debug(r.Message)
		} else {
			entry.Error(r.Message)
		}
	}
	return results
}

func invokeSafely(index int, handler EventHandler, e *TransitionEvent) (r *EventHandleResult) {
	defer func() {
		if p := recover(); p != nil {
			r = &EventHandleResult{Success: false, Message: fmt.Sprintf("handler panic: %v", p),
				HandlerIdentifier: fmt.Sprintf("handler-%d", index)}
		}
	}()
	return handler(e)
}
