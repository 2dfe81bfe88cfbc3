package domain

// ActivityLog is the categorized event log. Within each category, slice order
// is arrival order.
type ActivityLog struct {
	Network  []NetworkEvent `json:"network"`
	Protocol []NetworkEvent `json:"protocol"`
	Console  []ConsoleEvent `json:"console"`
}

// NewActivityLog returns a log with three empty, non-nil categories so that
// it encodes as empty JSON arrays.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{
		Network:  make([]NetworkEvent, 0),
		Protocol: make([]NetworkEvent, 0),
		Console:  make([]ConsoleEvent, 0),
	}
}

// Normalize replaces nil categories with empty ones. Persisted logs decoded
// from older or hand-written payloads may carry nulls.
func (l *ActivityLog) Normalize() {
	if l.Network == nil {
		l.Network = make([]NetworkEvent, 0)
	}
	if l.Protocol == nil {
		l.Protocol = make([]NetworkEvent, 0)
	}
	if l.Console == nil {
		l.Console = make([]ConsoleEvent, 0)
	}
}

// Clone returns a deep copy of the log.
func (l *ActivityLog) Clone() *ActivityLog {
	out := &ActivityLog{
		Network:  make([]NetworkEvent, len(l.Network)),
		Protocol: make([]NetworkEvent, len(l.Protocol)),
		Console:  make([]ConsoleEvent, len(l.Console)),
	}
	for i, e := range l.Network {
		out.Network[i] = e.Clone()
	}
	for i, e := range l.Protocol {
		out.Protocol[i] = e.Clone()
	}
	for i, e := range l.Console {
		out.Console[i] = e.Clone()
	}
	return out
}

// Len returns the number of events in category c, or 0 for an unknown category.
func (l *ActivityLog) Len(c Category) int {
	switch c {
	case CategoryNetwork:
		return len(l.Network)
	case CategoryProtocol:
		return len(l.Protocol)
	case CategoryConsole:
		return len(l.Console)
	default:
		return 0
	}
}

// Counts returns the size of every category.
func (l *ActivityLog) Counts() map[Category]int {
	counts := make(map[Category]int, 3)
	for _, c := range Categories() {
		counts[c] = l.Len(c)
	}
	return counts
}

// PruneBefore drops every event with a timestamp at or before cutoff, keeping
// the order of survivors. It returns the number of events removed.
func (l *ActivityLog) PruneBefore(cutoff int64) int {
	var removed int
	l.Network, removed = keepAfter(l.Network, cutoff, removed)
	l.Protocol, removed = keepAfter(l.Protocol, cutoff, removed)
	l.Console, removed = keepAfter(l.Console, cutoff, removed)
	return removed
}

// keepAfter filters into a fresh slice so that snapshots handed out earlier
// keep their backing arrays untouched.
func keepAfter[E Event](events []E, cutoff int64, removed int) ([]E, int) {
	kept := make([]E, 0, len(events))
	for _, e := range events {
		if e.EventTimestamp() > cutoff {
			kept = append(kept, e)
		}
	}
	return kept, removed + len(events) - len(kept)
}
