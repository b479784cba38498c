package causality

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventTokenGranted    ActivityEventType = "causality.token.granted"
	ActivityEventTokenDowngraded ActivityEventType = "causality.token.downgraded"
	ActivityEventTokenDenied     ActivityEventType = "causality.token.denied"
	ActivityEventTokenFailed     ActivityEventType = "causality.token.failed"
)

// ActivityEvent captures audit-friendly information about a token request.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	Requested  Role
	Granted    Role
	UserID     string
	SaleID     string
	Reference  string
	Reason     string
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
