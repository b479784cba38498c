package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-causality"
)

const (
	// MetadataKeyRequestedRole stores the role the caller asked for.
	MetadataKeyRequestedRole = "requested_role"
	// MetadataKeyGrantedRole stores the role that ended up in the token.
	MetadataKeyGrantedRole = "granted_role"
	// MetadataKeyReference stores the raw sale reference from the request.
	MetadataKeyReference = "reference"
	// MetadataKeyReason stores why a request was denied or failed.
	MetadataKeyReason = "reason"
)

const (
	defaultChannel    = "causality"
	defaultObjectType = "sale"
	defaultActorID    = "anonymous"
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
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(causality.ActivityEvent) string
}

// Normalize converts a causality.ActivityEvent into a generic normalized shape.
// The object is the resolved sale, or the raw reference when resolution failed
// before the sale was known.
func Normalize(event causality.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// Sink wraps a function receiving normalized records as a causality.ActivitySink.
func Sink(emit func(Normalized) error, opts ...Option) causality.ActivitySink {
	return causality.ActivitySinkFunc(func(_ context.Context, event causality.ActivityEvent) error {
		if emit == nil {
			return nil
		}
		return emit(Normalize(event, opts...))
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

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(causality.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used for anonymous viewers.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event causality.ActivityEvent, resolver func(causality.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return firstNonEmpty(strings.TrimSpace(event.SaleID), strings.TrimSpace(event.Reference))
}

func normalizeMetadata(event causality.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyRequestedRole, string(event.Requested))
	set(MetadataKeyGrantedRole, string(event.Granted))
	set(MetadataKeyReference, strings.TrimSpace(event.Reference))
	set(MetadataKeyReason, event.Reason)

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
