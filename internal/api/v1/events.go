package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/actrec/internal/activity"
	"github.com/gosuda/actrec/internal/domain"
	"github.com/gosuda/actrec/internal/message"
)

// EnvelopeInput carries one JSON envelope. The body is decoded by the message
// package so that partial records and legacy field names are accepted.
type EnvelopeInput struct {
	RawBody []byte `contentType:"application/json"`
}

type MessageReply struct {
	Op  string              `json:"op,omitempty"`
	Log *domain.ActivityLog `json:"log,omitempty"`
}

type PostMessageOutput struct {
	Body *MessageReply
}

func RegisterEventRoutes(api huma.API, decoder EventDecoder, sink EventSink, observer RequestObserver) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Record one producer event",
		Tags:          []string{"Events"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *EnvelopeInput) (*struct{}, error) {
		msg, err := decodeEvent(decoder, input.RawBody)
		if err != nil {
			return nil, err
		}
		if err = sink.Submit(ctx, msg.Category, msg.Event); err != nil {
			return nil, submitError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "post-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Record a completed request as network and, if it matches, protocol activity",
		Tags:          []string{"Events"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *EnvelopeInput) (*struct{}, error) {
		msg, err := decodeEvent(decoder, input.RawBody)
		if err != nil {
			return nil, err
		}
		ev, ok := msg.Event.(domain.NetworkEvent)
		if !ok || msg.Category != domain.CategoryNetwork {
			return nil, huma.Error400BadRequest("requests must be network envelopes")
		}
		if err = observer.RequestCompleted(ctx, ev); err != nil {
			return nil, submitError(err)
		}
		return nil, nil
	})
}

func RegisterMessageRoutes(api huma.API, decoder EventDecoder, handler MessageHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "post-message",
		Method:      http.MethodPost,
		Path:        "/messages",
		Summary:     "Handle a runtime message (getLog, clearLog or a producer event)",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *EnvelopeInput) (*PostMessageOutput, error) {
		msg, err := decoder.Decode(input.RawBody)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid message", err)
		}

		reply, err := handler.Dispatch(ctx, msg)
		if err != nil {
			return nil, submitError(err)
		}

		return &PostMessageOutput{Body: &MessageReply{Op: reply.Op, Log: reply.Log}}, nil
	})
}

func decodeEvent(decoder EventDecoder, raw []byte) (*message.Message, error) {
	msg, err := decoder.Decode(raw)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid event envelope", err)
	}
	if msg.IsQuery() {
		return nil, huma.Error400BadRequest("queries go to /messages or /log")
	}
	return msg, nil
}

func submitError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrCategoryMismatch),
		errors.Is(err, domain.ErrUnknownMessage):
		return huma.Error400BadRequest("rejected event", err)
	case errors.Is(err, activity.ErrIngestClosed):
		return huma.Error503ServiceUnavailable("ingest is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable("ingest queue is full")
	default:
		return huma.Error500InternalServerError("failed to record event", err)
	}
}
