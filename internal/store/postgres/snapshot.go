package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/actrec/internal/domain"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS activity_snapshots (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// SnapshotRepo keeps the whole activity log in one row of activity_snapshots.
type SnapshotRepo struct {
	pool *pgxpool.Pool
	key  string
}

func NewSnapshotRepo(pool *pgxpool.Pool, key string) *SnapshotRepo {
	return &SnapshotRepo{pool: pool, key: key}
}

func (r *SnapshotRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("snapshotRepo.EnsureSchema: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Load(ctx context.Context) (*domain.ActivityLog, error) {
	var payload []byte

	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM activity_snapshots WHERE key = $1`,
		r.key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshotRepo.Load: %w", err)
	}

	var l domain.ActivityLog
	if err = json.Unmarshal(payload, &l); err != nil {
		return nil, fmt.Errorf("snapshotRepo.Load: decode: %w", err)
	}

	return &l, nil
}

func (r *SnapshotRepo) Save(ctx context.Context, l *domain.ActivityLog) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("snapshotRepo.Save: marshal: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO activity_snapshots (key, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		r.key, payload,
	)
	if err != nil {
		return fmt.Errorf("snapshotRepo.Save: %w", err)
	}

	return nil
}
