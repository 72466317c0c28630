package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

func TestLockRegistry_Timeout(t *testing.T) {
	r := newLockRegistry(10 * time.Millisecond)
	k := domain.StockKey{BaseID: "A", AssetID: "rifle"}

	held, err := r.Acquire(context.Background(), k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = r.Acquire(context.Background(), k)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	held.Release()
	again, err := r.Acquire(context.Background(), k)
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	again.Release()
}

func TestLockRegistry_PartialAcquireReleases(t *testing.T) {
	r := newLockRegistry(10 * time.Millisecond)
	a := domain.StockKey{BaseID: "A", AssetID: "rifle"}
	b := domain.StockKey{BaseID: "B", AssetID: "rifle"}

	held, _ := r.Acquire(context.Background(), b)
	if _, err := r.Acquire(context.Background(), a, b); err == nil {
		t.Fatal("expected failure while B is held")
	}
	held.Release()

	// A must not have stayed locked by the failed attempt
	scope, err := r.Acquire(context.Background(), a)
	if err != nil {
		t.Fatalf("A leaked from failed acquire: %v", err)
	}
	scope.Release()
}

func TestLockRegistry_OppositeOrderNoDeadlock(t *testing.T) {
	r := newLockRegistry(0)
	a := domain.StockKey{BaseID: "A", AssetID: "rifle"}
	b := domain.StockKey{BaseID: "B", AssetID: "rifle"}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []domain.StockKey{a, b}
			if i%2 == 1 {
				keys = []domain.StockKey{b, a}
			}
			s, err := r.Acquire(context.Background(), keys...)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			s.Release()
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposite-order acquisitions deadlocked")
	}
}
