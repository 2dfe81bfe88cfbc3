package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Event is a timestamped record stored in one category of the activity log.
type Event interface {
	EventID() uuid.UUID
	EventTimestamp() int64
}

// NetworkEvent is a completed (or failed) outgoing request. Protocol events use
// the same shape with ProtocolMarker set.
//
// Every field except Timestamp is optional. Producers may send partial records
// (a failed request has no status); readers treat a missing value as unknown.
type NetworkEvent struct {
	ID               uuid.UUID         `json:"id"`
	Timestamp        int64             `json:"timestamp"`
	URL              string            `json:"url,omitempty"`
	Method           string            `json:"method,omitempty"`
	StatusCode       *int              `json:"statusCode,omitempty"`
	StatusText       string            `json:"statusText,omitempty"`
	ResourceType     string            `json:"resourceType,omitempty"`
	OriginatingTabID *int              `json:"originatingTabId,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	DurationMs       *float64          `json:"durationMs,omitempty"`
	RequestSize      *int64            `json:"requestSize,omitempty"`
	ResponseSize     *int64            `json:"responseSize,omitempty"`

	ProtocolMarker bool            `json:"protocolMarker,omitempty"`
	OperationName  string          `json:"operationName,omitempty"`
	RequestBody    json.RawMessage `json:"requestBody,omitempty"`
	ResponseBody   json.RawMessage `json:"responseBody,omitempty"`
}

func (e NetworkEvent) EventID() uuid.UUID    { return e.ID }
func (e NetworkEvent) EventTimestamp() int64 { return e.Timestamp }

// Clone returns a copy that shares no mutable memory with e.
func (e NetworkEvent) Clone() NetworkEvent {
	c := e
	c.StatusCode = clonePtr(e.StatusCode)
	c.OriginatingTabID = clonePtr(e.OriginatingTabID)
	c.DurationMs = clonePtr(e.DurationMs)
	c.RequestSize = clonePtr(e.RequestSize)
	c.ResponseSize = clonePtr(e.ResponseSize)
	c.Headers = maps.Clone(e.Headers)
	c.RequestBody = slices.Clone(e.RequestBody)
	c.ResponseBody = slices.Clone(e.ResponseBody)
	return c
}

// ConsoleLevel is the console method (or error source) that produced a message.
type ConsoleLevel string

const (
	ConsoleLevelLog   ConsoleLevel = "log"
	ConsoleLevelInfo  ConsoleLevel = "info"
	ConsoleLevelWarn  ConsoleLevel = "warn"
	ConsoleLevelError ConsoleLevel = "error"
	ConsoleLevelDebug ConsoleLevel = "debug"
)

// Origin identifies where a console event came from: a tab and its URL, or
// just the page URL when no tab is known.
type Origin struct {
	TabID *int   `json:"tabId,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ConsoleEvent is one intercepted console call or uncaught page error.
type ConsoleEvent struct {
	ID         uuid.UUID    `json:"id"`
	Timestamp  int64        `json:"timestamp"`
	Level      ConsoleLevel `json:"level,omitempty"`
	Messages   []string     `json:"messages"`
	StackTrace string       `json:"stackTrace,omitempty"`
	Origin     Origin       `json:"origin"`
}

func (e ConsoleEvent) EventID() uuid.UUID    { return e.ID }
func (e ConsoleEvent) EventTimestamp() int64 { return e.Timestamp }

// Clone returns a copy that shares no mutable memory with e.
func (e ConsoleEvent) Clone() ConsoleEvent {
	c := e
	c.Messages = slices.Clone(e.Messages)
	c.Origin.TabID = clonePtr(e.Origin.TabID)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CheckEvent reports whether ev may be stored in category c. Network and
// protocol hold NetworkEvent; console holds ConsoleEvent.
func CheckEvent(c Category, ev Event) error {
	if !c.Valid() {
		return fmt.Errorf("category %q: %w", c, ErrUnknownCategory)
	}
	switch ev.(type) {
	case NetworkEvent:
		if c == CategoryNetwork || c == CategoryProtocol {
			return nil
		}
	case ConsoleEvent:
		if c == CategoryConsole {
			return nil
		}
	}
	return fmt.Errorf("%T in %s: %w", ev, c, ErrCategoryMismatch)
}

// EnsureID returns ev with a fresh ID when it has none.
func EnsureID(ev Event) Event {
	if ev.EventID() != uuid.Nil {
		return ev
	}
	switch e := ev.(type) {
	case NetworkEvent:
		e.ID = uuid.New()
		return e
	case ConsoleEvent:
		e.ID = uuid.New()
		return e
	default:
		return ev
	}
}
