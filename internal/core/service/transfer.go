package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
)

// committer runs one movement through lock, stock check and store commit. A retryable
// failure repeats the whole sequence; nothing is ever resumed half way.
type committer struct {
	l       logrus.FieldLogger
	repo    port.LedgerRepository
	locks   *lockRegistry
	metrics MetricsRecorder
	retries int
	backoff time.Duration
}

func (c *committer) commit(ctx context.Context, m domain.Movement) ([]domain.StockPosition, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.CommitRetried(m.Kind)
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrConflict, ctx.Err())
			}
		}

		positions, err := c.once(ctx, m)
		if err == nil {
			return positions, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		c.l.WithError(err).WithFields(logrus.Fields{
			"movement_id": m.ID,
			"attempt":     attempt + 1,
		}).Warn("Commit conflict.")
	}
	return nil, lastErr
}

func (c *committer) once(ctx context.Context, m domain.Movement) ([]domain.StockPosition, error) {
	scope, err := c.locks.Acquire(ctx, m.Keys()...)
	if err != nil {
		return nil, err
	}
	defer scope.Release()

	return c.repo.Commit(ctx, m, func(current map[domain.StockKey]domain.StockPosition) error {
		return CheckStock(m, current).Err()
	})
}

// TransferCoordinator is the only path that changes two bases' stock. Both endpoint keys are
// locked as one scope and the source is re-validated against its locked position inside the
// commit, so a concurrent transfer can neither see half of it nor validate against stale stock.
type TransferCoordinator struct {
	c *committer
}

func newTransferCoordinator(c *committer) *TransferCoordinator {
	return &TransferCoordinator{c: c}
}

// Execute commits a transfer. Both positions are returned, source first.
func (t *TransferCoordinator) Execute(ctx context.Context, m domain.Movement) ([]domain.StockPosition, error) {
	if m.Kind != domain.KindTransfer {
		return nil, fmt.Errorf("%w: %s is not a transfer", domain.ErrValidation, m.ID)
	}
	positions, err := t.c.commit(ctx, m)
	if err != nil {
		return nil, err
	}
	return orderTransferPositions(m, positions), nil
}

func orderTransferPositions(m domain.Movement, positions []domain.StockPosition) []domain.StockPosition {
	out := make([]domain.StockPosition, 0, len(positions))
	for _, want := range m.Keys() {
		for _, p := range positions {
			if p.Key() == want {
				out = append(out, p)
			}
		}
	}
	return out
}
