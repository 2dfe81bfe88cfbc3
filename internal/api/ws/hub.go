package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/actrec/internal/domain"
	"github.com/gosuda/actrec/internal/message"
	redisstore "github.com/gosuda/actrec/internal/store/redis"
)

// MessageHandler decodes and acts on one envelope.
// *message.Dispatcher satisfies this interface.
type MessageHandler interface {
	Handle(ctx context.Context, raw []byte) (*message.Reply, error)
}

// Subscriber streams published payloads for a set of channels.
// *redis.PubSub satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error)
}

// Reply is written back on the ingest socket for getLog queries.
type Reply struct {
	Op  string              `json:"op"`
	Log *domain.ActivityLog `json:"log"`
}

// Hub serves the producer ingest stream and the live tail.
type Hub struct {
	handler    MessageHandler
	subscriber Subscriber // nil when Redis is not configured
	accept     *websocket.AcceptOptions
	frameRate  rate.Limit
	frameBurst int
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns allows cross-origin WebSocket handshakes from the given
// host patterns (extension pages, dev servers).
func WithOriginPatterns(patterns []string) Option {
	return func(h *Hub) {
		h.accept = &websocket.AcceptOptions{OriginPatterns: patterns}
	}
}

// WithFrameRate limits how many frames per second one ingest connection may
// send. Excess frames wait rather than being dropped.
func WithFrameRate(limit float64, burst int) Option {
	return func(h *Hub) {
		if limit > 0 {
			h.frameRate = rate.Limit(limit)
			h.frameBurst = burst
		}
	}
}

// NewHub creates a hub. subscriber may be nil, in which case the tail
// endpoint answers 501.
func NewHub(handler MessageHandler, subscriber Subscriber, opts ...Option) *Hub {
	h := &Hub{
		handler:    handler,
		subscriber: subscriber,
		frameRate:  rate.Inf,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeIngest reads one JSON envelope per frame. Producer events are recorded;
// getLog is answered on the same socket. Bad frames are logged and skipped.
func (h *Hub) ServeIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	limiter := rate.NewLimiter(h.frameRate, h.frameBurst)

	for {
		typ, data, readErr := conn.Read(ctx)
		if readErr != nil {
			if status := websocket.CloseStatus(readErr); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug().Err(readErr).Msg("websocket ingest read")
			}
			return
		}
		if typ != websocket.MessageText {
			log.Warn().Msg("websocket ingest: skipping binary frame")
			continue
		}

		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return
		}

		reply, handleErr := h.handler.Handle(ctx, data)
		if handleErr != nil {
			log.Warn().Err(handleErr).Msg("websocket ingest: skipping frame")
			continue
		}
		if reply.Log == nil {
			continue
		}

		if writeErr := h.writeReply(ctx, conn, reply); writeErr != nil {
			log.Debug().Err(writeErr).Msg("websocket write")
			return
		}
	}
}

func (h *Hub) writeReply(ctx context.Context, conn *websocket.Conn, reply *message.Reply) error {
	payload, err := json.Marshal(Reply{Op: reply.Op, Log: reply.Log})
	if err != nil {
		return fmt.Errorf("ws.Hub.writeReply: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

// ServeTail streams every appended event as it is recorded. An optional
// ?category= query narrows the stream to one category.
func (h *Hub) ServeTail(w http.ResponseWriter, r *http.Request) {
	if h.subscriber == nil {
		http.Error(w, "live tail requires redis", http.StatusNotImplemented)
		return
	}

	var categories []domain.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, err := domain.ParseCategory(raw)
		if err != nil {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}
		categories = append(categories, c)
	}

	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	messages, cleanup, err := h.subscriber.Subscribe(ctx, redisstore.ActivityChannels(categories...)...)
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	// Readers never send; CloseRead notices when they go away.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				if !errors.Is(writeErr, context.Canceled) {
					log.Debug().Err(writeErr).Msg("websocket write")
				}
				return
			}
		}
	}
}
