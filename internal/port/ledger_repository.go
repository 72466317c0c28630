package port

import (
	"context"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// StockCheck inspects the locked current positions before a commit. A non-nil error aborts
// the commit with nothing written.
type StockCheck func(current map[domain.StockKey]domain.StockPosition) error

type LedgerRepository interface {
	// Commit appends the movement to the log and applies it to the positions it touches in one
	// unit of work. Positions are locked in domain.SortKeys order before check runs.
	// Returns domain.ErrDuplicateEvent if the id is already logged and domain.ErrConflict on
	// contention or transient failure.
	Commit(ctx context.Context, m domain.Movement, check StockCheck) ([]domain.StockPosition, error)

	// GetMovement returns nil when the id is not in the log.
	GetMovement(ctx context.Context, id string) (*domain.Movement, error)

	// ListMovements returns matching movements in commit order from a single consistent read.
	ListMovements(ctx context.Context, q domain.MovementQuery) ([]domain.Movement, error)

	// ListPositions returns materialized positions, for one base when baseID is set.
	ListPositions(ctx context.Context, baseID string) ([]domain.StockPosition, error)
}
