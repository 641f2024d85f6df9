package bookhive

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventLogout             ActivityEventType = "auth.logout"
	ActivityEventBookCreated        ActivityEventType = "book.created"
	ActivityEventBookUpdated        ActivityEventType = "book.updated"
	ActivityEventBookDeleted        ActivityEventType = "book.deleted"
	ActivityEventBookStatusChanged  ActivityEventType = "book.status.changed"
	ActivityEventRentalCreated      ActivityEventType = "rental.created"
	ActivityEventRentalUpdated      ActivityEventType = "rental.updated"
	ActivityEventRentalInconsistent ActivityEventType = "rental.inconsistent"
	ActivityEventRentalCompensated  ActivityEventType = "rental.compensated"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	BookID     int64
	RentalID   int64
	FromStatus BookStatus
	ToStatus   BookStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

type activityRecorder struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	sink := normalizeActivitySink(r.sink)
	if err := sink.Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error: %v", err)
	}
}
