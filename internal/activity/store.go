// Package activity holds the activity log aggregation core: the in-memory
// store, its retention cycle, and the ingest queue that feeds it.
package activity

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/actrec/internal/domain"
)

const (
	// DefaultRetentionWindow is how long an event stays in the log.
	DefaultRetentionWindow = 15 * time.Minute
	// DefaultPruneInterval is the cadence of the prune-and-flush cycle.
	DefaultPruneInterval = time.Minute
)

// Persister stores the whole activity log under a single logical key.
// Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*domain.ActivityLog, error)
	Save(ctx context.Context, l *domain.ActivityLog) error
}

// Store is the exclusive owner of the activity log. All operations are atomic
// with respect to each other; persistence I/O never runs under the log lock.
type Store struct {
	mu  sync.RWMutex
	log *domain.ActivityLog

	// flushMu orders Save calls so the last completed write holds the latest state.
	flushMu   sync.Mutex
	persister Persister

	window      time.Duration
	now         func() time.Time
	restoreOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithRetentionWindow overrides DefaultRetentionWindow.
func WithRetentionWindow(d time.Duration) Option {
	return func(s *Store) { s.window = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. persister may be nil, in which case the
// log lives in memory only.
func NewStore(persister Persister, opts ...Option) *Store {
	s := &Store{
		log:       domain.NewActivityLog(),
		persister: persister,
		window:    DefaultRetentionWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RetentionWindow returns the configured window.
func (s *Store) RetentionWindow() time.Duration {
	return s.window
}

// Append adds ev to the end of category c. Partial events are stored as-is;
// the only checks are category membership and event type.
func (s *Store) Append(c domain.Category, ev domain.Event) error {
	if err := domain.CheckEvent(c, ev); err != nil {
		return fmt.Errorf("activity.Store.Append: %w", err)
	}
	ev = domain.EnsureID(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch c {
	case domain.CategoryNetwork:
		s.log.Network = append(s.log.Network, ev.(domain.NetworkEvent))
	case domain.CategoryProtocol:
		s.log.Protocol = append(s.log.Protocol, ev.(domain.NetworkEvent))
	case domain.CategoryConsole:
		s.log.Console = append(s.log.Console, ev.(domain.ConsoleEvent))
	}
	return nil
}

// Snapshot returns a deep copy of the full log as of the call.
func (s *Store) Snapshot() *domain.ActivityLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.log.Clone()
}

// Category returns a copy of one category: []domain.NetworkEvent for network
// and protocol, []domain.ConsoleEvent for console.
func (s *Store) Category(c domain.Category) (any, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("activity.Store.Category: %q: %w", c, domain.ErrUnknownCategory)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch c {
	case domain.CategoryNetwork:
		return cloneEvents(s.log.Network, domain.NetworkEvent.Clone), nil
	case domain.CategoryProtocol:
		return cloneEvents(s.log.Protocol, domain.NetworkEvent.Clone), nil
	default:
		return cloneEvents(s.log.Console, domain.ConsoleEvent.Clone), nil
	}
}

// Counts returns the number of events per category.
func (s *Store) Counts() map[domain.Category]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.log.Counts()
}

// Clear empties all categories and persists the empty log right away.
// A failed flush is logged; the in-memory clear stands either way.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.log = domain.NewActivityLog()
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("flush after clear failed")
	}
}

// Prune removes every event whose timestamp is at or before now minus the
// retention window and returns how many were removed.
func (s *Store) Prune(now time.Time) int {
	cutoff := now.Add(-s.window).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.log.PruneBefore(cutoff)
}

// Flush writes a copy of the current log through the persister.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	if err := s.persister.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("activity.Store.Flush: %w", err)
	}
	return nil
}

// Restore loads the persisted log, replacing the in-memory one, and prunes
// whatever aged out while the process was down. Only the first call has any
// effect. On a load error the store keeps its empty log and stays usable.
func (s *Store) Restore(ctx context.Context) error {
	var err error
	s.restoreOnce.Do(func() {
		err = s.restore(ctx)
	})
	return err
}

func (s *Store) restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("activity.Store.Restore: %w", err)
	}

	if loaded != nil {
		loaded.Normalize()
		s.mu.Lock()
		s.log = loaded
		s.mu.Unlock()
	}

	removed := s.Prune(s.now())
	log.Info().
		Bool("found", loaded != nil).
		Int("pruned", removed).
		Interface("counts", s.Counts()).
		Msg("activity log restored")
	return nil
}

func cloneEvents[E any](events []E, clone func(E) E) []E {
	out := slices.Clone(events)
	if out == nil {
		out = make([]E, 0)
	}
	for i := range out {
		out[i] = clone(out[i])
	}
	return out
}
