package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/actrec/internal/domain"
)

// DefaultSnapshotKey is the key holding the serialized activity log.
const DefaultSnapshotKey = "actrec:activity_log"

// SnapshotStore persists the whole activity log as JSON under a single key.
type SnapshotStore struct {
	client *redis.Client
	key    string
}

func (s *SnapshotStore) Key() string {
	return s.key
}

func (s *SnapshotStore) Load(ctx context.Context) (*domain.ActivityLog, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis.SnapshotStore.Load: %w", err)
	}

	var l domain.ActivityLog
	if err = json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("redis.SnapshotStore.Load: decode: %w", err)
	}
	return &l, nil
}

func (s *SnapshotStore) Save(ctx context.Context, l *domain.ActivityLog) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("redis.SnapshotStore.Save: marshal: %w", err)
	}

	if err = s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis.SnapshotStore.Save: %w", err)
	}
	return nil
}
