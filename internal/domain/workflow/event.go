package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a workflow transition.
type EventType string

const (
	EventApplicationCreated      EventType = "application.created"
	EventSecurityTargetSubmitted EventType = "security_target.submitted"
	EventEvaluationCreated       EventType = "evaluation.created"
	EventEvaluatorAssigned       EventType = "evaluation.assigned"
	EventSelectionEvaluated      EventType = "selection.evaluated"
	EventEvaluationCompleted     EventType = "evaluation.completed"
	EventReportGenerated         EventType = "report.generated"
	EventReportSubmitted         EventType = "report.submitted"
	EventReportReviewed          EventType = "report.reviewed"
)

// Event is emitted after a workflow transition commits.
type Event struct {
	ID            uuid.UUID              `json:"id"`
	Type          EventType              `json:"type"`
	ApplicationID uuid.UUID              `json:"application_id"`
	EntityID      uuid.UUID              `json:"entity_id"`
	ActorID       uuid.UUID              `json:"actor_id"`
	Status        string                 `json:"status,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// NewEvent builds an event for the given entity.
func NewEvent(eventType EventType, applicationID, entityID, actorID uuid.UUID, status string, at time.Time) *Event {
	return &Event{
		ID:            uuid.New(),
		Type:          eventType,
		ApplicationID: applicationID,
		EntityID:      entityID,
		ActorID:       actorID,
		Status:        status,
		OccurredAt:    at,
	}
}

// With attaches a data attribute and returns the event.
func (e *Event) With(key string, value interface{}) *Event {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// Publisher receives committed workflow events. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, e *Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e *Event)

func (f PublisherFunc) Publish(ctx context.Context, e *Event) { f(ctx, e) }

// Fanout publishes every event to each non-nil publisher in order.
func Fanout(publishers ...Publisher) Publisher {
	var ps []Publisher
	for _, p := range publishers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return PublisherFunc(func(ctx context.Context, e *Event) {
		for _, p := range ps {
			p.Publish(ctx, e)
		}
	})
}
