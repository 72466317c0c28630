package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// lockRegistry serializes writers per stock position. Each key owns a one-slot channel so
// that waiting can be abandoned when the context ends.
type lockRegistry struct {
	locks   sync.Map
	timeout time.Duration
}

func newLockRegistry(timeout time.Duration) *lockRegistry {
	return &lockRegistry{timeout: timeout}
}

func (r *lockRegistry) get(k domain.StockKey) chan struct{} {
	val, _ := r.locks.LoadOrStore(k, make(chan struct{}, 1))
	return val.(chan struct{})
}

// lockScope is a set of key locks taken together and released together.
type lockScope struct {
	held []chan struct{}
}

// Acquire takes every key in the global lock order. On failure nothing stays held.
func (r *lockRegistry) Acquire(ctx context.Context, keys ...domain.StockKey) (*lockScope, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	s := &lockScope{}
	for _, k := range domain.SortKeys(keys) {
		ch := r.get(k)
		select {
		case ch <- struct{}{}:
			s.held = append(s.held, ch)
		case <-ctx.Done():
			s.Release()
			return nil, fmt.Errorf("%w: waiting for lock on %s: %v", domain.ErrConflict, k, ctx.Err())
		}
	}
	return s, nil
}

func (s *lockScope) Release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		<-s.held[i]
	}
	s.held = nil
}
