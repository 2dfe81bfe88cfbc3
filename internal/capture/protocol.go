package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/actrec/internal/domain"
)

// DefaultProtocolPatterns marks GraphQL endpoints.
var DefaultProtocolPatterns = []string{"graphql"} //nolint:gochecknoglobals // default config

// ProtocolMatcher decides whether a request belongs to the query protocol by
// case-insensitive substring match on its URL.
type ProtocolMatcher struct {
	patterns []string
}

// NewProtocolMatcher builds a matcher; empty patterns are ignored.
func NewProtocolMatcher(patterns []string) *ProtocolMatcher {
	m := &ProtocolMatcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Match reports whether url matches any pattern.
func (m *ProtocolMatcher) Match(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range m.patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Sink accepts events for a category. *activity.Ingestor satisfies it.
type Sink interface {
	Submit(ctx context.Context, c domain.Category, ev domain.Event) error
}

// Observer records completed requests seen by the network observer.
type Observer struct {
	sink    Sink
	matcher *ProtocolMatcher
}

// NewObserver creates an Observer submitting to sink.
func NewObserver(sink Sink, matcher *ProtocolMatcher) *Observer {
	return &Observer{sink: sink, matcher: matcher}
}

// RequestCompleted records ev in the network category and, when its URL
// matches the protocol, records a tagged copy in the protocol category as an
// independent entry.
func (o *Observer) RequestCompleted(ctx context.Context, ev domain.NetworkEvent) error {
	ev.ProtocolMarker = false
	ev = domain.EnsureID(ev).(domain.NetworkEvent)

	var errs []error
	if err := o.sink.Submit(ctx, domain.CategoryNetwork, ev); err != nil {
		errs = append(errs, err)
	}

	if o.matcher.Match(ev.URL) {
		if err := o.sink.Submit(ctx, domain.CategoryProtocol, AsProtocol(ev)); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("capture.Observer.RequestCompleted: %w", err)
	}
	return nil
}

// AsProtocol returns a protocol-tagged copy of ev with its own ID and the
// operation name filled in from the request body when missing.
func AsProtocol(ev domain.NetworkEvent) domain.NetworkEvent {
	p := ev.Clone()
	p.ID = uuid.Nil
	p.ProtocolMarker = true
	if p.OperationName == "" {
		p.OperationName = OperationName(p.RequestBody)
	}
	return domain.EnsureID(p).(domain.NetworkEvent)
}
