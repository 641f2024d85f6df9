package bookhive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bookhive"
)

func TestBookStateMachineTransitionUpdatesStatus(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 3, Title: "Dune", Status: bookhive.BookStatusAvailable}

	updater.On("UpdateBookStatus", mock.Anything, int64(3), bookhive.BookStatusMaintenance).
		Return(&bookhive.Book{ID: 3, Title: "Dune", Status: bookhive.BookStatusMaintenance}, nil).Once()

	sm := bookhive.NewBookStateMachine(updater)

	result, err := sm.Transition(context.Background(), bookhive.ActorRef{ID: "librarian"}, book, bookhive.BookStatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, bookhive.BookStatusMaintenance, result.Status)
	assert.Equal(t, bookhive.BookStatusMaintenance, book.Status)
	updater.AssertExpectations(t)
}

func TestBookStateMachineRejectsInvalidTransition(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 3, Status: bookhive.BookStatusMaintenance}

	sm := bookhive.NewBookStateMachine(updater)

	_, err := sm.Transition(context.Background(), bookhive.ActorRef{}, book, bookhive.BookStatusBorrowed)
	require.Error(t, err)
	assert.True(t, bookhive.IsInvalidTransition(err))
	updater.AssertNotCalled(t, "UpdateBookStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookStateMachineRejectsUnknownTarget(t *testing.T) {
	sm := bookhive.NewBookStateMachine(&MockStatusUpdater{})

	_, err := sm.Transition(context.Background(), bookhive.ActorRef{}, &bookhive.Book{ID: 1}, bookhive.BookStatus("Lost"))
	assert.True(t, bookhive.IsInvalidTransition(err))

	_, err = sm.Transition(context.Background(), bookhive.ActorRef{}, &bookhive.Book{ID: 1}, "")
	assert.True(t, bookhive.IsInvalidTransition(err))

	_, err = sm.Transition(context.Background(), bookhive.ActorRef{}, nil, bookhive.BookStatusBorrowed)
	assert.True(t, bookhive.IsInvalidTransition(err))
}

func TestBookStateMachineSameStatusIsNoop(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 3, Status: bookhive.BookStatusBorrowed}

	sm := bookhive.NewBookStateMachine(updater)

	result, err := sm.Transition(context.Background(), bookhive.ActorRef{}, book, bookhive.BookStatusBorrowed)
	require.NoError(t, err)
	assert.Same(t, book, result)
	updater.AssertNotCalled(t, "UpdateBookStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookStateMachineForceTransitionBypassesGraph(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 3, Status: bookhive.BookStatusMaintenance}

	updater.On("UpdateBookStatus", mock.Anything, int64(3), bookhive.BookStatusBorrowed).
		Return(&bookhive.Book{ID: 3, Status: bookhive.BookStatusBorrowed}, nil).Once()

	sm := bookhive.NewBookStateMachine(updater)

	result, err := sm.Transition(
		context.Background(),
		bookhive.ActorRef{},
		book,
		bookhive.BookStatusBorrowed,
		bookhive.WithForceTransition(),
	)
	require.NoError(t, err)
	assert.Equal(t, bookhive.BookStatusBorrowed, result.Status)
	updater.AssertExpectations(t)
}

func TestBookStateMachineRunsHooksWithMetadata(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 5, Status: bookhive.BookStatusAvailable}
	ts := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

	updater.On("UpdateBookStatus", mock.Anything, int64(5), bookhive.BookStatusCheckedOut).
		Return(nil, nil).Once()

	var order []string
	var reasonSeen string
	var metadataSeen map[string]any

	before := func(ctx context.Context, tc bookhive.TransitionContext) error {
		order = append(order, "before")
		reasonSeen = tc.Meta.Reason
		metadataSeen = tc.Meta.Metadata
		assert.Equal(t, bookhive.BookStatusAvailable, tc.From)
		assert.Equal(t, bookhive.BookStatusCheckedOut, tc.To)
		return nil
	}
	after := func(ctx context.Context, tc bookhive.TransitionContext) error {
		order = append(order, "after")
		return nil
	}

	sink := &recordingSink{}
	sm := bookhive.NewBookStateMachine(updater,
		bookhive.WithStateMachineClock(func() time.Time { return ts }),
		bookhive.WithStateMachineActivitySink(sink),
	)

	_, err := sm.Transition(
		context.Background(),
		bookhive.ActorRef{ID: "desk"},
		book,
		bookhive.BookStatusCheckedOut,
		bookhive.WithTransitionReason("front desk checkout"),
		bookhive.WithTransitionMetadata(map[string]any{"desk": 2}),
		bookhive.WithBeforeTransitionHook(before),
		bookhive.WithAfterTransitionHook(after),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"before", "after"}, order)
	assert.Equal(t, "front desk checkout", reasonSeen)
	assert.Equal(t, 2, metadataSeen["desk"])

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, bookhive.ActivityEventBookStatusChanged, events[0].EventType)
	assert.Equal(t, bookhive.BookStatusAvailable, events[0].FromStatus)
	assert.Equal(t, bookhive.BookStatusCheckedOut, events[0].ToStatus)
	assert.Equal(t, ts, events[0].OccurredAt)
	assert.Equal(t, "desk", events[0].Actor.ID)
	assert.Equal(t, "front desk checkout", events[0].Metadata["reason"])
}

func TestBookStateMachineBeforeHookErrorStopsUpdate(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 5, Status: bookhive.BookStatusAvailable}
	hookErr := errors.New("closed for inventory")

	var phaseSeen bookhive.TransitionHookPhase
	sm := bookhive.NewBookStateMachine(updater,
		bookhive.WithStateMachineHookErrorHandler(func(ctx context.Context, phase bookhive.TransitionHookPhase, err error, tc bookhive.TransitionContext) error {
			phaseSeen = phase
			return err
		}),
	)

	_, err := sm.Transition(context.Background(), bookhive.ActorRef{}, book, bookhive.BookStatusBorrowed,
		bookhive.WithBeforeTransitionHook(func(context.Context, bookhive.TransitionContext) error {
			return hookErr
		}),
	)
	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, bookhive.HookPhaseBefore, phaseSeen)
	assert.Equal(t, bookhive.BookStatusAvailable, book.Status)
	updater.AssertNotCalled(t, "UpdateBookStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookStateMachineUpdaterErrorIsReturned(t *testing.T) {
	updater := &MockStatusUpdater{}
	book := &bookhive.Book{ID: 5, Status: bookhive.BookStatusBorrowed}
	failure := bookhive.ErrRequestFailed(500, "boom")

	updater.On("UpdateBookStatus", mock.Anything, int64(5), bookhive.BookStatusAvailable).
		Return(nil, failure).Once()

	sink := &recordingSink{}
	sm := bookhive.NewBookStateMachine(updater, bookhive.WithStateMachineActivitySink(sink))

	_, err := sm.Transition(context.Background(), bookhive.ActorRef{}, book, bookhive.BookStatusAvailable)
	assert.True(t, bookhive.IsRequestFailed(err))
	assert.Equal(t, bookhive.BookStatusBorrowed, book.Status)
	assert.Empty(t, sink.Events())
}

func TestBookStateMachineCustomTransitions(t *testing.T) {
	sm := bookhive.NewBookStateMachine(&MockStatusUpdater{},
		bookhive.WithStateMachineTransitions(map[bookhive.BookStatus][]bookhive.BookStatus{
			bookhive.BookStatusAvailable: {bookhive.BookStatusBorrowed},
			bookhive.BookStatusBorrowed:  {bookhive.BookStatusAvailable},
		}),
	)

	assert.True(t, sm.CanTransition(bookhive.BookStatusAvailable, bookhive.BookStatusBorrowed))
	assert.True(t, sm.CanTransition("", bookhive.BookStatusBorrowed))
	assert.False(t, sm.CanTransition(bookhive.BookStatusAvailable, bookhive.BookStatusMaintenance))
	assert.False(t, sm.CanTransition(bookhive.BookStatusMaintenance, bookhive.BookStatusAvailable))
}

func TestDefaultBookTransitions(t *testing.T) {
	sm := bookhive.NewBookStateMachine(&MockStatusUpdater{})

	for _, status := range bookhive.BookStatuses() {
		if status == bookhive.BookStatusAvailable {
			continue
		}
		assert.True(t, sm.CanTransition(status, bookhive.BookStatusAvailable), "%s should return to Available", status)
		assert.True(t, sm.CanTransition(bookhive.BookStatusAvailable, status), "Available should reach %s", status)
	}
	assert.False(t, sm.CanTransition(bookhive.BookStatusMaintenance, bookhive.BookStatusBorrowed))
}
