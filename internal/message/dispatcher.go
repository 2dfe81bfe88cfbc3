package message

import (
	"context"
	"fmt"

	"github.com/gosuda/actrec/internal/domain"
)

// Store is the reader-facing side of the activity store.
// *activity.Store satisfies this interface.
type Store interface {
	Snapshot() *domain.ActivityLog
	Clear(ctx context.Context)
}

// Sink accepts producer events. *activity.Ingestor satisfies this interface.
type Sink interface {
	Submit(ctx context.Context, c domain.Category, ev domain.Event) error
}

// Dispatcher routes decoded messages: events to the sink, queries to the store.
type Dispatcher struct {
	decoder *Decoder
	store   Store
	sink    Sink
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(decoder *Decoder, store Store, sink Sink) *Dispatcher {
	return &Dispatcher{decoder: decoder, store: store, sink: sink}
}

// Reply is the outcome of handling one message. Log is set only for getLog.
type Reply struct {
	Op  string
	Log *domain.ActivityLog
}

// Handle decodes raw and acts on it.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) (*Reply, error) {
	msg, err := d.decoder.Decode(raw)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, msg)
}

// Dispatch acts on an already decoded message.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (*Reply, error) {
	switch msg.Op {
	case OpGetLog:
		return &Reply{Op: msg.Op, Log: d.store.Snapshot()}, nil
	case OpClearLog:
		d.store.Clear(ctx)
		return &Reply{Op: msg.Op}, nil
	case "":
		if err := d.sink.Submit(ctx, msg.Category, msg.Event); err != nil {
			return nil, fmt.Errorf("message.Dispatcher.Dispatch: %w", err)
		}
		return &Reply{}, nil
	default:
		return nil, fmt.Errorf("message.Dispatcher.Dispatch: op %q: %w", msg.Op, domain.ErrUnknownMessage)
	}
}
