package cache

import (
	"context"
	"time"

	"dapurlima/backend/internal/domain"
)

// MovementCache holds recently computed movement reports. Reconstruction is
// pure but loads every event collection for the outlet, so a short TTL
// absorbs dashboard refresh storms without risking stale mutations: any
// write path invalidates nothing and simply waits out the TTL.
type MovementCache interface {
	Get(ctx context.Context, key string) (*domain.MovementReport, bool, error)
	Set(ctx context.Context, key string, value *domain.MovementReport, ttl time.Duration) error
}

type NoopMovementCache struct{}

func (NoopMovementCache) Get(_ context.Context, _ string) (*domain.MovementReport, bool, error) {
	return nil, false, nil
}

func (NoopMovementCache) Set(_ context.Context, _ string, _ *domain.MovementReport, _ time.Duration) error {
	return nil
}
