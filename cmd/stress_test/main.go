package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/asset-ledger/internal/adapter/storage"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
)

const (
	assetID       = "rifle"
	initialStock  = 20
	totalRequests = 50
	pingPongPairs = 200
	retryRequests = 50
)

func main() {
	ctx := context.Background()
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)

	store := storage.NewMemoryStore()
	store.CreateBase(ctx, domain.Base{ID: "alpha", Name: "Alpha"})
	store.CreateBase(ctx, domain.Base{ID: "bravo", Name: "Bravo"})
	store.CreateAsset(ctx, domain.Asset{ID: assetID, Name: "Rifle", Type: "WEAPON"})

	ledger := service.NewLedger(l, store, store, service.LedgerConfig{
		CommitRetries: 3,
		LockTimeout:   5 * time.Second,
	})
	defer ledger.Close()

	if _, err := ledger.Apply(ctx, domain.Purchase{
		ID: "initial", AssetID: assetID, BaseID: "alpha", Quantity: initialStock, CreatedBy: "stress",
	}.Movement()); err != nil {
		l.WithError(err).Fatal("Failed to stock base.")
	}

	// Last units: every request wants one rifle out of alpha
	var successCount atomic.Int32
	var failCount atomic.Int32
	var otherErrors atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := ledger.Apply(ctx, domain.Transfer{
				ID: fmt.Sprintf("drain-%d", n), AssetID: assetID, FromBaseID: "alpha", ToBaseID: "bravo",
				Quantity: 1, CreatedBy: "stress",
			}.Movement())
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				failCount.Add(1)
			default:
				otherErrors.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Opposite-direction transfers on the same pair of positions
	pingStart := time.Now()
	for i := 0; i < pingPongPairs; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			if _, err := ledger.Apply(ctx, domain.Transfer{
				ID: fmt.Sprintf("ping-%d", n), AssetID: assetID, FromBaseID: "bravo", ToBaseID: "alpha",
				Quantity: 1, CreatedBy: "stress",
			}.Movement()); err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				otherErrors.Add(1)
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			if _, err := ledger.Apply(ctx, domain.Transfer{
				ID: fmt.Sprintf("pong-%d", n), AssetID: assetID, FromBaseID: "alpha", ToBaseID: "bravo",
				Quantity: 1, CreatedBy: "stress",
			}.Movement()); err != nil && !errors.Is(err, domain.ErrInsufficientStock) {
				otherErrors.Add(1)
			}
		}(i)
	}
	wg.Wait()
	pingElapsed := time.Since(pingStart)

	// Retries of one event id
	var replayCount atomic.Int32
	for i := 0; i < retryRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := ledger.Apply(ctx, domain.Purchase{
				ID: "resupply", AssetID: assetID, BaseID: "bravo", Quantity: 5, CreatedBy: "stress",
			}.Movement())
			if err != nil {
				otherErrors.Add(1)
				return
			}
			if applied.Replayed {
				replayCount.Add(1)
			}
		}()
	}
	wg.Wait()

	positions, err := ledger.Positions(ctx, "")
	if err != nil {
		l.WithError(err).Fatal("Failed to read positions.")
	}
	var total int64
	var negative bool
	for _, p := range positions {
		total += p.OnHand
		if p.OnHand < 0 {
			negative = true
		}
	}

	// Results
	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Unexpected:       %d\n", otherErrors.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Ping-Pong Pairs:  %d (%v)\n", pingPongPairs, pingElapsed)
	fmt.Printf("Replays:          %d\n", replayCount.Load())
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && fail == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d transfers succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	if otherErrors.Load() == 0 {
		fmt.Println("PASS: No conflicts or deadlocks")
	} else {
		fmt.Printf("FAIL: %d requests failed for reasons other than stock\n", otherErrors.Load())
	}

	if want := int64(initialStock + 5); total == want && !negative {
		fmt.Printf("PASS: Stock conserved at %d, no negative positions\n", total)
	} else {
		fmt.Printf("FAIL: Expected total %d and no negatives, got %d (negative=%v)\n", want, total, negative)
	}

	if replayCount.Load() == retryRequests-1 {
		fmt.Println("PASS: Retried event recorded once")
	} else {
		fmt.Printf("FAIL: Expected %d replays, got %d\n", retryRequests-1, replayCount.Load())
	}
}
