package v1_test

import (
	"context"
	"sync"
	"time"

	"github.com/gosuda/actrec/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock ActivityStore
// ---------------------------------------------------------------------------

type mockActivityStore struct {
	snapshotFunc func() *domain.ActivityLog
	categoryFunc func(c domain.Category) (any, error)
	countsFunc   func() map[domain.Category]int
	clearFunc    func(ctx context.Context)
	window       time.Duration
}

func (m *mockActivityStore) Snapshot() *domain.ActivityLog { return m.snapshotFunc() }

func (m *mockActivityStore) Category(c domain.Category) (any, error) { return m.categoryFunc(c) }

func (m *mockActivityStore) Counts() map[domain.Category]int { return m.countsFunc() }

func (m *mockActivityStore) Clear(ctx context.Context) { m.clearFunc(ctx) }

func (m *mockActivityStore) RetentionWindow() time.Duration { return m.window }

// ---------------------------------------------------------------------------
// Mock EventSink
// ---------------------------------------------------------------------------

type submission struct {
	category domain.Category
	event    domain.Event
}

type mockSink struct {
	mu     sync.Mutex
	got    []submission
	errFor func(c domain.Category) error
}

func (m *mockSink) Submit(_ context.Context, c domain.Category, ev domain.Event) error {
	if m.errFor != nil {
		if err := m.errFor(c); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, submission{category: c, event: ev})
	return nil
}

func (m *mockSink) submissions() []submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]submission(nil), m.got...)
}

// ---------------------------------------------------------------------------
// Mock RequestObserver
// ---------------------------------------------------------------------------

type mockObserver struct {
	requestCompletedFunc func(ctx context.Context, ev domain.NetworkEvent) error
}

func (m *mockObserver) RequestCompleted(ctx context.Context, ev domain.NetworkEvent) error {
	return m.requestCompletedFunc(ctx, ev)
}

func fixedNow() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}
