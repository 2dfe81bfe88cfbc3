package main

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/actrec/internal/activity"
	"github.com/gosuda/actrec/internal/api/ws"
	"github.com/gosuda/actrec/internal/config"
	"github.com/gosuda/actrec/internal/store/file"
	"github.com/gosuda/actrec/internal/store/postgres"
	redisstore "github.com/gosuda/actrec/internal/store/redis"
)

// backend bundles the persistence and live-tail connections picked by config.
type backend struct {
	persister  activity.Persister // nil for the "none" backend
	publisher  activity.Publisher // nil without Redis
	subscriber ws.Subscriber      // nil without Redis
	closers    []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}

	// Redis doubles as live-tail fan-out whenever it is configured.
	var pubsub *redisstore.PubSub
	if cfg.Redis.Addr != "" {
		ps, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		pubsub = ps
		b.publisher = ps
		b.subscriber = ps
		b.closers = append(b.closers, func() { _ = ps.Close() })
	}

	switch cfg.Persist.Backend {
	case config.BackendNone:
		log.Warn().Msg("persistence disabled, activity log will not survive restarts")

	case config.BackendFile:
		fs, err := file.New(cfg.Persist.File)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.persister = fs

	case config.BackendRedis:
		b.persister = pubsub.Snapshots(cfg.Persist.Key)

	case config.BackendPostgres:
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			b.Close()
			return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}
		pg, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), cfg.Persist.Key) //nolint:gosec // bounds checked above
		if err != nil {
			b.Close()
			return nil, err
		}
		b.persister = pg.Snapshots()
		b.closers = append(b.closers, pg.Close)

	default:
		b.Close()
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persist.Backend)
	}

	return b, nil
}
