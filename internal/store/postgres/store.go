package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool      *pgxpool.Pool
	snapshots *SnapshotRepo
}

func New(ctx context.Context, dsn string, maxConns int32, key string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	snapshots := NewSnapshotRepo(pool, key)
	if err = snapshots.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: %w", err)
	}

	return &Store{
		pool:      pool,
		snapshots: snapshots,
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Snapshots() *SnapshotRepo { return s.snapshots }
