package activity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/actrec/internal/activity"
	"github.com/gosuda/actrec/internal/domain"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type fakePersister struct {
	mu      sync.Mutex
	loaded  *domain.ActivityLog
	loadErr error
	saveErr error
	saves   []*domain.ActivityLog
	loads   int
}

func (f *fakePersister) Load(context.Context) (*domain.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loaded, nil
}

func (f *fakePersister) Save(_ context.Context, l *domain.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, l)
	return nil
}

func (f *fakePersister) lastSave() *domain.ActivityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	return f.saves[len(f.saves)-1]
}

func (f *fakePersister) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

var base = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func netEvent(ts int64, url string) domain.NetworkEvent {
	return domain.NetworkEvent{Timestamp: ts, URL: url, Method: "GET"}
}

func consoleEvent(ts int64, msg string) domain.ConsoleEvent {
	return domain.ConsoleEvent{Timestamp: ts, Level: domain.ConsoleLevelLog, Messages: []string{msg}}
}

func urls(events []domain.NetworkEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.URL)
	}
	return out
}

// ---------------------------------------------------------------------------
// Append / Snapshot
// ---------------------------------------------------------------------------

func TestStore_EmptySnapshot(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	snap := s.Snapshot()

	assert.NotNil(t, snap.Network)
	assert.NotNil(t, snap.Protocol)
	assert.NotNil(t, snap.Console)
	assert.Empty(t, snap.Network)
	assert.Empty(t, snap.Protocol)
	assert.Empty(t, snap.Console)
}

func TestStore_Append_PreservesArrivalOrder(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	ts := base.UnixMilli()

	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(ts, "a1")))
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(ts-5, "a2")))
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(ts+5, "a3")))

	assert.Equal(t, []string{"a1", "a2", "a3"}, urls(s.Snapshot().Network))
}

func TestStore_Append_AssignsID(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	given := uuid.New()

	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(1, "no-id")))
	ev := netEvent(2, "with-id")
	ev.ID = given
	require.NoError(t, s.Append(domain.CategoryNetwork, ev))

	snap := s.Snapshot()
	assert.NotEqual(t, uuid.Nil, snap.Network[0].ID)
	assert.Equal(t, given, snap.Network[1].ID)
}

func TestStore_Append_Validation(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)

	err := s.Append(domain.Category("graphql"), netEvent(1, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)

	err = s.Append(domain.CategoryConsole, netEvent(1, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCategoryMismatch)

	err = s.Append(domain.CategoryProtocol, consoleEvent(1, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCategoryMismatch)

	assert.Equal(t, map[domain.Category]int{
		domain.CategoryNetwork:  0,
		domain.CategoryProtocol: 0,
		domain.CategoryConsole:  0,
	}, s.Counts())
}

func TestStore_Append_AcceptsPartialRecords(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	require.NoError(t, s.Append(domain.CategoryNetwork, domain.NetworkEvent{Timestamp: 1, URL: "https://failed.test"}))
	require.NoError(t, s.Append(domain.CategoryConsole, domain.ConsoleEvent{Timestamp: 1}))

	snap := s.Snapshot()
	require.Len(t, snap.Network, 1)
	assert.Nil(t, snap.Network[0].StatusCode)
	require.Len(t, snap.Console, 1)
	assert.Empty(t, snap.Console[0].Level)
}

func TestStore_CategoryIsolation(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(1, "n")))
	require.NoError(t, s.Append(domain.CategoryProtocol, netEvent(1, "p")))
	before := s.Snapshot()

	for i := range 10 {
		require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(int64(i), "c")))
	}

	after := s.Snapshot()
	assert.Equal(t, before.Network, after.Network)
	assert.Equal(t, before.Protocol, after.Protocol)
	assert.Len(t, after.Console, 10)
}

func TestStore_Snapshot_IsIsolatedCopy(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(1, "original")))

	snap := s.Snapshot()
	snap.Console[0].Messages[0] = "mutated"
	snap.Console = append(snap.Console, consoleEvent(2, "extra"))

	again := s.Snapshot()
	require.Len(t, again.Console, 1)
	assert.Equal(t, "original", again.Console[0].Messages[0])
}

func TestStore_Category(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	require.NoError(t, s.Append(domain.CategoryProtocol, netEvent(1, "https://api.test/graphql")))
	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(1, "hi")))

	got, err := s.Category(domain.CategoryProtocol)
	require.NoError(t, err)
	protocol, ok := got.([]domain.NetworkEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"https://api.test/graphql"}, urls(protocol))

	got, err = s.Category(domain.CategoryNetwork)
	require.NoError(t, err)
	network, ok := got.([]domain.NetworkEvent)
	require.True(t, ok)
	assert.NotNil(t, network)
	assert.Empty(t, network)

	got, err = s.Category(domain.CategoryConsole)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.Category("bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestStore_ConcurrentAppends_NoneLost(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 16, 200

	s := activity.NewStore(nil)
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perProducer {
				ev := consoleEvent(int64(i), "")
				ev.Messages = []string{string(rune('a' + p))}
				assert.NoError(t, s.Append(domain.CategoryConsole, ev))
			}
		}(p)
	}

	// Readers run alongside producers and must never see a torn log.
	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
				snap := s.Snapshot()
				for _, e := range snap.Console {
					assert.Len(t, e.Messages, 1)
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	readers.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Console, producers*perProducer)

	// Per-producer order survives interleaving.
	last := make(map[string]int64)
	for _, e := range snap.Console {
		key := e.Messages[0]
		if prev, ok := last[key]; ok {
			assert.Greater(t, e.Timestamp, prev)
		}
		last[key] = e.Timestamp
	}
}

// ---------------------------------------------------------------------------
// Prune
// ---------------------------------------------------------------------------

func TestStore_Prune_RetentionScenario(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	T := base.UnixMilli()

	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(T, "old")))
	s.Prune(base.Add(16 * time.Minute))
	assert.Empty(t, s.Snapshot().Network)

	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(T, "recent")))
	s.Prune(base.Add(14 * time.Minute))
	assert.Len(t, s.Snapshot().Console, 1)
}

func TestStore_Prune_Boundary(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	now := base
	cutoff := now.Add(-activity.DefaultRetentionWindow).UnixMilli()

	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(cutoff-1, "before")))
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(cutoff, "at")))
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(cutoff+1, "after")))

	removed := s.Prune(now)

	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"after"}, urls(s.Snapshot().Network))
}

func TestStore_Prune_Idempotent(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	T := base.UnixMilli()
	for i := range 20 {
		ts := T - int64(i)*int64(time.Minute/time.Millisecond)
		require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(ts, "n")))
		require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(ts, "c")))
	}

	s.Prune(base)
	first := s.Snapshot()
	removed := s.Prune(base)
	second := s.Snapshot()

	assert.Zero(t, removed)
	assert.Equal(t, first, second)
}

func TestStore_Prune_CustomWindow(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil, activity.WithRetentionWindow(time.Minute))
	assert.Equal(t, time.Minute, s.RetentionWindow())

	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(base.Add(-2*time.Minute).UnixMilli(), "old")))
	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(base.Add(-30*time.Second).UnixMilli(), "new")))

	s.Prune(base)

	snap := s.Snapshot()
	require.Len(t, snap.Console, 1)
	assert.Equal(t, "new", snap.Console[0].Messages[0])
}

func TestStore_ProtocolAndNetworkPrunedIndependently(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(nil)
	T := base.UnixMilli()
	url := "https://api.test/graphql"

	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(T, url)))
	proto := netEvent(T, url)
	proto.ProtocolMarker = true
	require.NoError(t, s.Append(domain.CategoryProtocol, proto))

	snap := s.Snapshot()
	require.Len(t, snap.Network, 1)
	require.Len(t, snap.Protocol, 1)
	assert.NotEqual(t, snap.Network[0].ID, snap.Protocol[0].ID)

	// A later plain request keeps network alive while the protocol entry ages out.
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(base.Add(10*time.Minute).UnixMilli(), "later")))
	s.Prune(base.Add(16 * time.Minute))

	snap = s.Snapshot()
	assert.Equal(t, []string{"later"}, urls(snap.Network))
	assert.Empty(t, snap.Protocol)
}

// ---------------------------------------------------------------------------
// Clear / Flush
// ---------------------------------------------------------------------------

func TestStore_Clear_EmptiesAndPersists(t *testing.T) {
	t.Parallel()

	p := &fakePersister{}
	s := activity.NewStore(p)
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(1, "n")))
	require.NoError(t, s.Append(domain.CategoryProtocol, netEvent(1, "p")))
	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(1, "c")))

	s.Clear(context.Background())

	snap := s.Snapshot()
	assert.Empty(t, snap.Network)
	assert.Empty(t, snap.Protocol)
	assert.Empty(t, snap.Console)

	require.Equal(t, 1, p.saveCount(), "clear flushes immediately")
	saved := p.lastSave()
	assert.Empty(t, saved.Network)
	assert.Empty(t, saved.Protocol)
	assert.Empty(t, saved.Console)
}

func TestStore_Clear_SurvivesFlushFailure(t *testing.T) {
	t.Parallel()

	p := &fakePersister{saveErr: errors.New("disk full")}
	s := activity.NewStore(p)
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(1, "n")))

	s.Clear(context.Background())

	assert.Empty(t, s.Snapshot().Network)
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(2, "after")))
	assert.Len(t, s.Snapshot().Network, 1)
}

func TestStore_Flush(t *testing.T) {
	t.Parallel()

	t.Run("writes full copy", func(t *testing.T) {
		t.Parallel()

		p := &fakePersister{}
		s := activity.NewStore(p)
		require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(1, "c")))

		require.NoError(t, s.Flush(context.Background()))

		saved := p.lastSave()
		require.NotNil(t, saved)
		require.Len(t, saved.Console, 1)

		// The persisted copy does not alias the live log.
		saved.Console[0].Messages[0] = "changed"
		assert.Equal(t, "c", s.Snapshot().Console[0].Messages[0])
	})

	t.Run("error is wrapped and store keeps working", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("unavailable")
		s := activity.NewStore(&fakePersister{saveErr: boom})
		require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(1, "c")))

		err := s.Flush(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, s.Snapshot().Console, 1)
	})

	t.Run("no persister is a no-op", func(t *testing.T) {
		t.Parallel()

		s := activity.NewStore(nil)
		assert.NoError(t, s.Flush(context.Background()))
	})
}

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

func TestStore_Restore_ReplacesAndPrunes(t *testing.T) {
	t.Parallel()

	persisted := domain.NewActivityLog()
	persisted.Network = []domain.NetworkEvent{
		netEvent(base.Add(-20*time.Minute).UnixMilli(), "aged-out"),
		netEvent(base.Add(-5*time.Minute).UnixMilli(), "kept"),
	}
	persisted.Console = nil

	p := &fakePersister{loaded: persisted}
	s := activity.NewStore(p, activity.WithClock(fixedClock(base)))

	// Events appended before restore are replaced, not merged.
	require.NoError(t, s.Append(domain.CategoryProtocol, netEvent(base.UnixMilli(), "pre-restore")))

	require.NoError(t, s.Restore(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, []string{"kept"}, urls(snap.Network))
	assert.Empty(t, snap.Protocol)
	assert.NotNil(t, snap.Console)
}

func TestStore_Restore_OnlyOnce(t *testing.T) {
	t.Parallel()

	persisted := domain.NewActivityLog()
	persisted.Console = []domain.ConsoleEvent{consoleEvent(base.UnixMilli(), "restored")}

	p := &fakePersister{loaded: persisted}
	s := activity.NewStore(p, activity.WithClock(fixedClock(base)))

	require.NoError(t, s.Restore(context.Background()))
	require.NoError(t, s.Append(domain.CategoryConsole, consoleEvent(base.UnixMilli(), "live")))
	require.NoError(t, s.Restore(context.Background()))

	assert.Equal(t, 1, p.loads)
	assert.Len(t, s.Snapshot().Console, 2)
}

func TestStore_Restore_NothingSaved(t *testing.T) {
	t.Parallel()

	s := activity.NewStore(&fakePersister{}, activity.WithClock(fixedClock(base)))
	require.NoError(t, s.Restore(context.Background()))

	assert.Equal(t, domain.NewActivityLog(), s.Snapshot())
}

func TestStore_Restore_LoadFailureFallsBackToEmpty(t *testing.T) {
	t.Parallel()

	boom := errors.New("corrupt snapshot")
	s := activity.NewStore(&fakePersister{loadErr: boom}, activity.WithClock(fixedClock(base)))

	err := s.Restore(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, domain.NewActivityLog(), s.Snapshot())
	require.NoError(t, s.Append(domain.CategoryNetwork, netEvent(base.UnixMilli(), "n")))
	assert.Len(t, s.Snapshot().Network, 1)
}
