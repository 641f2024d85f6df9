package bookhive

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Manager applies the book and rental lifecycle on top of a Gateway
type Manager struct {
	gateway    Gateway
	logger     Logger
	activity   activityRecorder
	now        func() time.Time
	compensate bool
	actor      ActorRef
	machine    BookStateMachine
	smOpts     []StateMachineOption
}

var (
	_ Catalog = (*Manager)(nil)
	_ Rentals = (*Manager)(nil)
)

// Option customizes a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the sink for book and rental events
func WithActivitySink(sink ActivitySink) Option {
	return func(m *Manager) {
		m.activity.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRentCompensation makes RentBook mark the new rental as returned when
// the book status update fails, instead of leaving it in place.
func WithRentCompensation(enabled bool) Option {
	return func(m *Manager) {
		m.compensate = enabled
	}
}

// WithActor sets the actor reported in activity events
func WithActor(actor ActorRef) Option {
	return func(m *Manager) {
		m.actor = actor
	}
}

// WithStateMachineOptions passes options to the BookStateMachine used by TransitionBook
func WithStateMachineOptions(opts ...StateMachineOption) Option {
	return func(m *Manager) {
		m.smOpts = append(m.smOpts, opts...)
	}
}

// NewManager creates a lifecycle manager dispatching through gateway
func NewManager(gateway Gateway, opts ...Option) *Manager {
	m := &Manager{
		gateway: gateway,
		logger:  defLogger{},
		now:     time.Now,
		activity: activityRecorder{
			sink: noopActivitySink{},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.activity.logger = m.logger
	m.activity.now = m.now

	smOpts := []StateMachineOption{
		WithStateMachineClock(m.now),
		WithStateMachineActivitySink(m.activity.sink),
		WithStateMachineLogger(m.logger),
	}
	m.machine = NewBookStateMachine(statusWriter{m}, append(smOpts, m.smOpts...)...)

	return m
}

// StateMachine returns the guard used by TransitionBook
func (m *Manager) StateMachine() BookStateMachine {
	return m.machine
}

func (m *Manager) record(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = m.actorFromContext(ctx)
	}
	m.activity.record(ctx, event)
}

func (m *Manager) actorFromContext(ctx context.Context) ActorRef {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor
	}
	return m.actor
}

// statusWriter updates book status without recording activity
type statusWriter struct {
	m *Manager
}

func (w statusWriter) UpdateBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error) {
	return w.m.updateBookStatus(ctx, id, status)
}

// ackError turns an acknowledgement carrying an error into a RequestFailed
func ackError(errMessage string) error {
	if strings.TrimSpace(errMessage) == "" {
		return nil
	}
	return ErrRequestFailed(http.StatusBadRequest, errMessage)
}

// notFoundFrom maps a 404 response, or a failure whose message says the
// resource is missing, to ErrNotFound
func notFoundFrom(err error, resource string, id int64) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeRequestFailed {
		return err
	}
	if richErr.Code == http.StatusNotFound ||
		strings.Contains(strings.ToLower(richErr.Message), strings.ToLower(resource)+" not found") {
		return ErrNotFound(resource, id)
	}
	return err
}

func bookPath(id int64) string {
	return fmt.Sprintf("/api/books/%d", id)
}

func bookStatusPath(id int64) string {
	return fmt.Sprintf("/api/books/%d/status", id)
}

func rentalPath(id int64) string {
	return fmt.Sprintf("/api/rentals/%d", id)
}

func rentalUpdatePath(id int64) string {
	return fmt.Sprintf("/api/rentals/update/%d", id)
}
