package activitymap

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-bookhive"
)

const (
	// MetadataKeyActorType stores the actor type derived from bookhive.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus stores the source book status for status changes.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the target book status.
	MetadataKeyToStatus = "to_status"
	// MetadataKeyBookID stores the book of a rental event.
	MetadataKeyBookID = "book_id"
)

const (
	defaultChannel = "catalog"
	defaultActorID = "system"

	ObjectTypeBook    = "book"
	ObjectTypeRental  = "rental"
	ObjectTypeSession = "session"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts a bookhive.ActivityEvent into a generic normalized shape.
// Rental events point at the rental, book events at the book and session
// events at the session itself.
func Normalize(event bookhive.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.Actor.ID),
		strings.TrimSpace(options.actorFallback),
	)

	objectType, objectID := resolveObject(event)
	if options.objectType != "" {
		objectType = options.objectType
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// NewSink returns an ActivitySink that normalizes every event before
// handing it to emit
func NewSink(emit func(context.Context, Normalized) error, opts ...Option) bookhive.ActivitySink {
	return bookhive.ActivitySinkFunc(func(ctx context.Context, event bookhive.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(ctx, Normalize(event, opts...))
	})
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType forces the object type instead of deriving it from the event.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the clock used for events without a timestamp
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if opts == nil || now == nil {
			return
		}
		opts.now = now
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func resolveObject(event bookhive.ActivityEvent) (string, string) {
	switch {
	case event.RentalID != 0:
		return ObjectTypeRental, strconv.FormatInt(event.RentalID, 10)
	case event.BookID != 0:
		return ObjectTypeBook, strconv.FormatInt(event.BookID, 10)
	case strings.HasPrefix(string(event.EventType), "auth."):
		return ObjectTypeSession, ""
	case strings.HasPrefix(string(event.EventType), "rental."):
		return ObjectTypeRental, ""
	default:
		return ObjectTypeBook, ""
	}
}

func normalizeMetadata(event bookhive.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			set(MetadataKeyActorType, actorType)
		}
	}

	if event.RentalID != 0 && event.BookID != 0 {
		set(MetadataKeyBookID, event.BookID)
	}

	if event.FromStatus != "" {
		set(MetadataKeyFromStatus, string(event.FromStatus))
	}

	if event.ToStatus != "" {
		set(MetadataKeyToStatus, string(event.ToStatus))
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
