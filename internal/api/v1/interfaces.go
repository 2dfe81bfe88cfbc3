package v1

import (
	"context"
	"time"

	"github.com/gosuda/actrec/internal/domain"
	"github.com/gosuda/actrec/internal/message"
)

// ActivityStore abstracts the reader side of the activity log for handler testing.
// *activity.Store satisfies this interface.
type ActivityStore interface {
	Snapshot() *domain.ActivityLog
	Category(c domain.Category) (any, error)
	Counts() map[domain.Category]int
	Clear(ctx context.Context)
	RetentionWindow() time.Duration
}

// EventDecoder parses producer and query envelopes.
// *message.Decoder satisfies this interface.
type EventDecoder interface {
	Decode(raw []byte) (*message.Message, error)
}

// EventSink accepts decoded producer events.
// *activity.Ingestor satisfies this interface.
type EventSink interface {
	Submit(ctx context.Context, c domain.Category, ev domain.Event) error
}

// MessageHandler answers runtime-style messages.
// *message.Dispatcher satisfies this interface.
type MessageHandler interface {
	Dispatch(ctx context.Context, msg *message.Message) (*message.Reply, error)
}

// RequestObserver records a completed request in the network category and,
// when it matches a protocol pattern, in the protocol category too.
// *capture.Observer satisfies this interface.
type RequestObserver interface {
	RequestCompleted(ctx context.Context, ev domain.NetworkEvent) error
}
