package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const inMemorySweepInterval = 5 * time.Minute

// FactoryOption configures NewIdempotencyStore
type FactoryOption func(*factory)

type factory struct {
	logger        *zap.Logger
	allowFallback bool
}

// WithLogger sets the logger used to report which store was chosen
func WithLogger(l *zap.Logger) FactoryOption {
	return func(f *factory) { f.logger = l }
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// the in-memory store (default) or fails startup
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) { f.allowFallback = allow }
}

// NewIdempotencyStore returns a Redis-backed store when Redis is enabled and
// reachable, otherwise the in-memory store
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, opts ...FactoryOption) (shared.IdempotencyStore, error) {
	f := &factory{logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(f)
	}

	if !cfg.Enabled {
		f.logger.Info("redis disabled, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(inMemorySweepInterval), nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if !f.allowFallback {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		f.logger.Warn("redis unavailable, falling back to in-memory idempotency store",
			zap.String("addr", cfg.Addr()), zap.Error(err))
		return NewInMemoryIdempotencyStore(inMemorySweepInterval), nil
	}

	f.logger.Info("using redis idempotency store", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))
	return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
}
