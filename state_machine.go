package bookhive

import (
	"context"
	"time"
)

// ActorRef identifies who/what triggered a transition.
type ActorRef struct {
	ID   string
	Type string
}

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionContext is passed into hooks for additional processing.
type TransitionContext struct {
	Actor ActorRef
	Book  *Book
	From  BookStatus
	To    BookStatus
	Meta  TransitionMetadata
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after the update.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes state machine behavior.
type TransitionOption func(*transitionOptions)

// BookStatusUpdater persists a status change
type BookStatusUpdater interface {
	UpdateBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error)
}

// BookStateMachine guards manual book status changes.
type BookStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, book *Book, target BookStatus, opts ...TransitionOption) (*Book, error)
	CanTransition(from, to BookStatus) bool
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*bookStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *bookStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish status events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *bookStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
// By default the hook error is returned as is.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *bookStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *bookStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithStateMachineTransitions replaces the transition graph
func WithStateMachineTransitions(transitions map[BookStatus][]BookStatus) StateMachineOption {
	return func(sm *bookStateMachine) {
		if len(transitions) == 0 {
			return
		}
		sm.transitions = buildTransitions(transitions)
	}
}

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithForceTransition bypasses the transition graph (use sparingly).
func WithForceTransition() TransitionOption {
	return func(opts *transitionOptions) {
		opts.force = true
	}
}

// WithBeforeTransitionHook adds a hook executed before the status update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the status update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// DefaultBookTransitions is the graph used unless overridden. Every
// unavailable status returns to Available; Borrowed and Checked Out are
// interchangeable.
func DefaultBookTransitions() map[BookStatus][]BookStatus {
	return map[BookStatus][]BookStatus{
		BookStatusAvailable: {
			BookStatusBorrowed,
			BookStatusCheckedOut,
			BookStatusMaintenance,
		},
		BookStatusBorrowed: {
			BookStatusAvailable,
			BookStatusCheckedOut,
		},
		BookStatusCheckedOut: {
			BookStatusAvailable,
			BookStatusBorrowed,
		},
		BookStatusMaintenance: {
			BookStatusAvailable,
		},
	}
}

// NewBookStateMachine returns the default implementation backed by updater.
func NewBookStateMachine(updater BookStatusUpdater, opts ...StateMachineOption) BookStateMachine {
	sm := &bookStateMachine{
		updater:      updater,
		transitions:  buildTransitions(DefaultBookTransitions()),
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type bookStateMachine struct {
	updater          BookStatusUpdater
	transitions      map[BookStatus]map[BookStatus]struct{}
	now              func() time.Time
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata    TransitionMetadata
	force       bool
	beforeHooks []TransitionHook
	afterHooks  []TransitionHook
}

func (o *transitionOptions) cloneMetadata() TransitionMetadata {
	var cloned map[string]any
	if len(o.metadata.Metadata) > 0 {
		cloned = make(map[string]any, len(o.metadata.Metadata))
		for k, v := range o.metadata.Metadata {
			cloned[k] = v
		}
	}

	return TransitionMetadata{
		Reason:   o.metadata.Reason,
		Metadata: cloned,
	}
}

func (sm *bookStateMachine) Transition(ctx context.Context, actor ActorRef, book *Book, target BookStatus, opts ...TransitionOption) (*Book, error) {
	if book == nil {
		return nil, ErrInvalidTransition("", target, "book is nil")
	}

	from := book.Status.OrDefault()
	if target == "" {
		return nil, ErrInvalidTransition(from, target, "target status is empty")
	}
	if !target.IsValid() {
		return nil, ErrInvalidTransition(from, target, "unknown target status")
	}

	if from == target {
		return book, nil
	}

	options := sm.buildTransitionOptions(opts...)

	if !options.force && !sm.CanTransition(from, target) {
		return nil, ErrInvalidTransition(from, target, "")
	}

	ctxData := TransitionContext{
		Actor: actor,
		Book:  book,
		From:  from,
		To:    target,
		Meta:  options.cloneMetadata(),
	}

	if err := sm.runHooks(ctx, options.beforeHooks, ctxData, HookPhaseBefore); err != nil {
		return nil, err
	}

	updated, err := sm.updater.UpdateBookStatus(ctx, book.ID, target)
	if err != nil {
		return nil, err
	}

	sm.applyUpdates(book, updated, target)

	if err := sm.runHooks(ctx, options.afterHooks, ctxData, HookPhaseAfter); err != nil {
		return nil, err
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventBookStatusChanged,
		Actor:      actor,
		BookID:     book.ID,
		FromStatus: from,
		ToStatus:   target,
		Metadata:   sm.transitionMetadata(ctxData.Meta),
	})

	return book, nil
}

func (sm *bookStateMachine) CanTransition(from, to BookStatus) bool {
	if allowed, ok := sm.transitions[from.OrDefault()]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *bookStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *bookStateMachine) buildTransitionOptions(opts ...TransitionOption) *transitionOptions {
	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func (sm *bookStateMachine) applyUpdates(book, updated *Book, target BookStatus) {
	if updated != nil && updated.ID == book.ID && updated.Title != "" {
		*book = *updated
	}
	book.Status = target
}

func (sm *bookStateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	sink := normalizeActivitySink(sm.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func (sm *bookStateMachine) transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}

func buildTransitions(graph map[BookStatus][]BookStatus) map[BookStatus]map[BookStatus]struct{} {
	out := make(map[BookStatus]map[BookStatus]struct{}, len(graph))
	for from, targets := range graph {
		allowed := make(map[BookStatus]struct{}, len(targets))
		for _, to := range targets {
			allowed[to] = struct{}{}
		}
		out[from] = allowed
	}
	return out
}
