package cache

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewEventStore builds the webhook idempotency store. With Redis disabled
// the in-memory store is used. An enabled but unreachable Redis is an error
// in production and falls back to memory elsewhere.
func NewEventStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Redis.Enabled {
		logger.Info("using in-memory webhook event store")
		return NewMemoryEventStore(), nil
	}

	client, err := NewRedisClient(ctx, cfg.Redis)
	if err == nil {
		logger.Info("using Redis webhook event store", zap.String("addr", cfg.Redis.Addr()))
		return NewRedisEventStore(client, DefaultKeyPrefix), nil
	}
	if cfg.App.IsProduction() {
		return nil, fmt.Errorf("redis required for webhook idempotency: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory webhook event store",
		zap.Error(err))
	return NewMemoryEventStore(), nil
}
