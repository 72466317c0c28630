package port

import (
	"context"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// CacheRepository keeps recently committed movements for fast idempotent replays.
// It is never the source of truth: a miss falls through to the ledger.
type CacheRepository interface {
	// LookupMovement returns nil on a miss.
	LookupMovement(ctx context.Context, id string) (*domain.Movement, error)

	// RememberMovement stores a committed movement. Returns false if it was already cached.
	RememberMovement(ctx context.Context, m domain.Movement) (bool, error)
}
