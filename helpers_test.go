package bookhive_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bookhive"
	"github.com/goliatone/go-bookhive/bookhivetest"
)

type recordingSink struct {
	mu     sync.Mutex
	events []bookhive.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event bookhive.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []bookhive.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bookhive.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) Types() []bookhive.ActivityEventType {
	out := []bookhive.ActivityEventType{}
	for _, e := range r.Events() {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingSink) Last(eventType bookhive.ActivityEventType) (bookhive.ActivityEvent, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType == eventType {
			return events[i], true
		}
	}
	return bookhive.ActivityEvent{}, false
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

var fixedNow = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

type stack struct {
	srv     *bookhivetest.Server
	client  *bookhive.Client
	manager *bookhive.Manager
	sink    *recordingSink
}

func newStack(t *testing.T, srvOpts []bookhivetest.Option, mgrOpts ...bookhive.Option) *stack {
	t.Helper()

	srvOpts = append([]bookhivetest.Option{
		bookhivetest.WithUser("alice", "alice@example.com", "secret1"),
	}, srvOpts...)
	srv := bookhivetest.New(srvOpts...)

	sink := &recordingSink{}
	client := bookhive.NewClient(srv.BaseURL(), nil,
		bookhive.WithHTTPClient(srv.Client()),
		bookhive.WithClientLogger(silentLogger{}),
		bookhive.WithClientActivitySink(sink),
	)

	_, err := client.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)

	mgrOpts = append([]bookhive.Option{
		bookhive.WithLogger(silentLogger{}),
		bookhive.WithActivitySink(sink),
		bookhive.WithClock(func() time.Time { return fixedNow }),
	}, mgrOpts...)

	return &stack{
		srv:     srv,
		client:  client,
		manager: bookhive.NewManager(client, mgrOpts...),
		sink:    sink,
	}
}

func dune() bookhive.Book {
	return bookhive.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}
}

func emma() bookhive.Book {
	return bookhive.Book{Title: "Emma", Author: "Jane Austen", Genre: "Classic"}
}
