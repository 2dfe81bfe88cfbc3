package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/actrec/internal/domain"
)

// ErrIngestClosed is returned by Submit once the ingestor has shut down.
var ErrIngestClosed = errors.New("activity: ingest closed") //nolint:gochecknoglobals // sentinel error

// DefaultQueueSize is the ingest buffer used when none is configured.
const DefaultQueueSize = 1024

// Publisher receives every event after it has been appended, for live tail.
type Publisher interface {
	PublishEvent(ctx context.Context, c domain.Category, ev domain.Event) error
}

type submission struct {
	category domain.Category
	event    domain.Event
}

// Ingestor serializes producer submissions into the store. Any number of
// producers may call Submit; a single Run loop is the only caller of
// Store.Append, so events land in the order they were dequeued.
type Ingestor struct {
	store     *Store
	queue     chan submission
	publisher Publisher // nil when live tail is disabled

	mu       sync.RWMutex
	closed   bool
	stopping chan struct{}
	done     chan struct{}
}

// NewIngestor creates an ingestor feeding store. publisher may be nil.
func NewIngestor(store *Store, queueSize int, publisher Publisher) *Ingestor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Ingestor{
		store:     store,
		queue:     make(chan submission, queueSize),
		publisher: publisher,
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Submit enqueues ev for category c. It blocks only while the queue is full.
// The event is checked up front so a bad category is reported to the producer
// instead of being dropped later.
func (in *Ingestor) Submit(ctx context.Context, c domain.Category, ev domain.Event) error {
	if err := domain.CheckEvent(c, ev); err != nil {
		return fmt.Errorf("activity.Ingestor.Submit: %w", err)
	}
	sub := submission{category: c, event: domain.EnsureID(ev)}

	in.mu.RLock()
	defer in.mu.RUnlock()

	if in.closed {
		return ErrIngestClosed
	}

	select {
	case in.queue <- sub:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("activity.Ingestor.Submit: %w", ctx.Err())
	case <-in.stopping:
		return ErrIngestClosed
	}
}

// Pending returns the number of queued, not yet appended events.
func (in *Ingestor) Pending() int {
	return len(in.queue)
}

// Run consumes the queue until ctx is cancelled, then appends whatever was
// already accepted and returns.
func (in *Ingestor) Run(ctx context.Context) {
	defer close(in.done)

	for {
		select {
		case sub := <-in.queue:
			in.apply(ctx, sub)
		case <-ctx.Done():
			in.shutdown(context.WithoutCancel(ctx))
			return
		}
	}
}

// Done is closed after Run has drained the queue.
func (in *Ingestor) Done() <-chan struct{} {
	return in.done
}

func (in *Ingestor) shutdown(ctx context.Context) {
	close(in.stopping)

	// Wait for in-flight Submit calls, then refuse new ones.
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()

	drained := 0
	for {
		select {
		case sub := <-in.queue:
			in.apply(ctx, sub)
			drained++
		default:
			log.Info().Int("drained", drained).Msg("ingest stopped")
			return
		}
	}
}

func (in *Ingestor) apply(ctx context.Context, sub submission) {
	if err := in.store.Append(sub.category, sub.event); err != nil {
		log.Error().Err(err).Str("category", string(sub.category)).Msg("append rejected")
		return
	}

	if in.publisher == nil {
		return
	}
	if err := in.publisher.PublishEvent(ctx, sub.category, sub.event); err != nil {
		log.Debug().Err(err).Str("category", string(sub.category)).Msg("publish event")
	}
}
