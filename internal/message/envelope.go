// Package message decodes the producer and query envelopes exchanged with the
// activity service and routes them to the store.
//
// Two envelope forms are accepted:
//
//	{"kind": "network"|"protocol"|"console", ...fields}   producer event
//	{"op": "getLog"|"clearLog"}                           reader query
//
// and the runtime-message form used by browser extension scripts,
// {"type": "console"|"network"|"graphql"|"getLog"|"clearLog", "data": {...}}.
package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gosuda/actrec/internal/capture"
	"github.com/gosuda/actrec/internal/domain"
)

// Query operations.
const (
	OpGetLog   = "getLog"
	OpClearLog = "clearLog"
)

// legacyProtocolType is the runtime-message name for protocol events.
const legacyProtocolType = "graphql"

type header struct {
	Kind string          `json:"kind"`
	Op   string          `json:"op"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is a decoded envelope: either a query (Op set) or a producer event
// (Category and Event set).
type Message struct {
	Op       string
	Category domain.Category
	Event    domain.Event
}

// IsQuery reports whether m is a reader query.
func (m *Message) IsQuery() bool {
	return m.Op != ""
}

type sizePayload struct {
	Request  *int64 `json:"request"`
	Response *int64 `json:"response"`
}

type networkPayload struct {
	Timestamp        int64             `json:"timestamp"`
	URL              string            `json:"url"`
	Method           string            `json:"method"`
	StatusCode       *int              `json:"statusCode"`
	Status           *int              `json:"status"`
	StatusText       string            `json:"statusText"`
	ResourceType     string            `json:"resourceType"`
	Type             string            `json:"type"`
	OriginatingTabID *int              `json:"originatingTabId"`
	TabID            *int              `json:"tabId"`
	Headers          map[string]string `json:"headers"`
	DurationMs       *float64          `json:"durationMs"`
	Timing           *float64          `json:"timing"`
	Size             *sizePayload      `json:"size"`
	ProtocolMarker   bool              `json:"protocolMarker"`
	OperationName    string            `json:"operationName"`
	RequestBody      json.RawMessage   `json:"requestBody"`
	PostData         json.RawMessage   `json:"postData"`
	ResponseBody     json.RawMessage   `json:"responseBody"`
	Response         json.RawMessage   `json:"response"`
}

// event merges the canonical fields with their runtime-message aliases;
// canonical names win when both are present.
func (p *networkPayload) event() domain.NetworkEvent {
	ev := domain.NetworkEvent{
		Timestamp:        p.Timestamp,
		URL:              p.URL,
		Method:           p.Method,
		StatusCode:       firstNonNil(p.StatusCode, p.Status),
		StatusText:       p.StatusText,
		ResourceType:     firstNonEmpty(p.ResourceType, p.Type),
		OriginatingTabID: firstNonNil(p.OriginatingTabID, p.TabID),
		Headers:          p.Headers,
		DurationMs:       firstNonNil(p.DurationMs, p.Timing),
		ProtocolMarker:   p.ProtocolMarker,
		OperationName:    p.OperationName,
		RequestBody:      bodyOf(p.RequestBody, p.PostData),
		ResponseBody:     bodyOf(p.ResponseBody, p.Response),
	}
	if p.Size != nil {
		ev.RequestSize = p.Size.Request
		ev.ResponseSize = p.Size.Response
	}
	return ev
}

type originPayload struct {
	TabID *int   `json:"tabId"`
	URL   string `json:"url"`
}

type consolePayload struct {
	Timestamp  int64             `json:"timestamp"`
	Level      string            `json:"level"`
	Type       string            `json:"type"`
	Messages   []json.RawMessage `json:"messages"`
	StackTrace string            `json:"stackTrace"`
	Stack      string            `json:"stack"`
	Origin     *originPayload    `json:"origin"`
	TabID      *int              `json:"tabId"`
	URL        string            `json:"url"`
	Source     string            `json:"source"`
}

func (p *consolePayload) event() domain.ConsoleEvent {
	origin := domain.Origin{TabID: p.TabID, URL: firstNonEmpty(p.URL, p.Source)}
	if p.Origin != nil {
		origin = domain.Origin{
			TabID: firstNonNil(p.Origin.TabID, origin.TabID),
			URL:   firstNonEmpty(p.Origin.URL, origin.URL),
		}
	}
	return capture.ConsoleCall(
		domain.ConsoleLevel(firstNonEmpty(p.Level, p.Type)),
		p.Timestamp,
		p.Messages,
		firstNonEmpty(p.StackTrace, p.Stack),
		origin,
	)
}

// Decoder turns raw envelopes into Messages.
type Decoder struct {
	now func() time.Time
}

// NewDecoder creates a Decoder; events without a timestamp are stamped with
// now() at receipt.
func NewDecoder(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now}
}

// Decode parses one envelope. Unknown kinds and ops fail with
// domain.ErrUnknownMessage; missing event fields are left unknown.
func (d *Decoder) Decode(raw []byte) (*Message, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("message.Decode: %w", err)
	}

	switch {
	case h.Op != "":
		return decodeQuery(h.Op)
	case h.Kind != "":
		return d.decodeEvent(h.Kind, raw)
	case h.Type == OpGetLog || h.Type == OpClearLog:
		return decodeQuery(h.Type)
	case h.Type == legacyProtocolType:
		return d.decodeEvent(string(domain.CategoryProtocol), h.Data)
	case h.Type != "":
		return d.decodeEvent(h.Type, h.Data)
	default:
		return nil, fmt.Errorf("message.Decode: no kind, op or type: %w", domain.ErrUnknownMessage)
	}
}

func decodeQuery(op string) (*Message, error) {
	switch op {
	case OpGetLog, OpClearLog:
		return &Message{Op: op}, nil
	default:
		return nil, fmt.Errorf("message.Decode: op %q: %w", op, domain.ErrUnknownMessage)
	}
}

func (d *Decoder) decodeEvent(kind string, payload json.RawMessage) (*Message, error) {
	c, err := domain.ParseCategory(kind)
	if err != nil {
		return nil, fmt.Errorf("message.Decode: kind %q: %w", kind, domain.ErrUnknownMessage)
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	switch c {
	case domain.CategoryConsole:
		var p consolePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("message.Decode: console: %w", err)
		}
		ev := p.event()
		if ev.Timestamp == 0 {
			ev.Timestamp = d.now().UnixMilli()
		}
		return &Message{Category: c, Event: ev}, nil

	default:
		var p networkPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("message.Decode: %s: %w", c, err)
		}
		ev := p.event()
		if ev.Timestamp == 0 {
			ev.Timestamp = d.now().UnixMilli()
		}
		if c == domain.CategoryProtocol {
			ev = capture.AsProtocol(ev)
		}
		return &Message{Category: c, Event: ev}, nil
	}
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// bodyOf picks the first present body and normalizes it to raw JSON.
func bodyOf(bodies ...json.RawMessage) json.RawMessage {
	for _, b := range bodies {
		if len(b) > 0 && string(b) != "null" {
			return capture.ParseBody(b)
		}
	}
	return nil
}
