package service

import (
	"context"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
)

// WarmCache drains committed movements into the idempotency cache until queue is closed.
// A failed write only costs a database lookup on the next replay, so it is logged and dropped.
func WarmCache(l logrus.FieldLogger, id int, queue <-chan domain.Movement, cache port.CacheRepository) {
	for m := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if _, err := cache.RememberMovement(ctx, m); err != nil {
			l.WithError(err).WithFields(logrus.Fields{
				"worker":      id,
				"movement_id": m.ID,
			}).Warn("Failed to cache movement.")
		}

		cancel()
	}
}
