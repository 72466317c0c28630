package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

type store interface {
	port.LedgerRepository
	port.ReferenceRepository
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func purchase(id, base, asset string, qty int64, at time.Time) domain.Movement {
	return domain.Movement{ID: id, Kind: domain.KindPurchase, BaseID: base, AssetID: asset, Quantity: qty, CreatedBy: "u1", CreatedAt: at}
}

func transfer(id, from, to, asset string, qty int64, at time.Time) domain.Movement {
	return domain.Movement{ID: id, Kind: domain.KindTransfer, BaseID: from, ToBaseID: to, AssetID: asset, Quantity: qty, CreatedBy: "u1", CreatedAt: at}
}

// runStoreContract exercises behaviour every repository must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) store) {
	t.Run("CommitAppliesAndLogs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		positions, err := s.Commit(ctx, purchase("p1", "alpha", "rifle", 50, epoch), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(positions) != 1 || positions[0].OnHand != 50 || positions[0].Version != 1 {
			t.Fatalf("unexpected positions: %+v", positions)
		}

		m, err := s.GetMovement(ctx, "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m == nil || m.Quantity != 50 || !m.CreatedAt.Equal(epoch) {
			t.Fatalf("unexpected movement: %+v", m)
		}
	})

	t.Run("DuplicateEventRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Commit(ctx, purchase("dup", "alpha", "rifle", 5, epoch), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := s.Commit(ctx, purchase("dup", "alpha", "rifle", 5, epoch), nil)
		if !errors.Is(err, domain.ErrDuplicateEvent) {
			t.Fatalf("expected ErrDuplicateEvent, got %v", err)
		}

		positions, _ := s.ListPositions(ctx, "alpha")
		if len(positions) != 1 || positions[0].OnHand != 5 {
			t.Errorf("duplicate changed stock: %+v", positions)
		}
	})

	t.Run("CheckFailureWritesNothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rejected := errors.New("rejected")
		_, err := s.Commit(ctx, purchase("p1", "alpha", "rifle", 5, epoch), func(map[domain.StockKey]domain.StockPosition) error {
			return rejected
		})
		if !errors.Is(err, rejected) {
			t.Fatalf("expected check error, got %v", err)
		}
		m, _ := s.GetMovement(ctx, "p1")
		if m != nil {
			t.Errorf("rejected movement was logged: %+v", m)
		}
	})

	t.Run("NegativeStockRefused", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		s.Commit(ctx, purchase("p1", "alpha", "rifle", 3, epoch), nil)
		_, err := s.Commit(ctx, transfer("t1", "alpha", "bravo", "rifle", 4, epoch), nil)
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
		positions, _ := s.ListPositions(ctx, "")
		for _, p := range positions {
			if p.BaseID == "alpha" && p.OnHand != 3 {
				t.Errorf("source changed: %+v", p)
			}
			if p.BaseID == "bravo" && p.OnHand != 0 {
				t.Errorf("destination changed: %+v", p)
			}
		}
	})

	t.Run("TransferMovesBothSides", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		s.Commit(ctx, purchase("p1", "bravo", "rifle", 10, epoch), nil)
		positions, err := s.Commit(ctx, transfer("t1", "bravo", "alpha", "rifle", 4, epoch.Add(time.Hour)), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// lock order: alpha before bravo
		if len(positions) != 2 || positions[0].BaseID != "alpha" || positions[0].OnHand != 4 || positions[1].OnHand != 6 {
			t.Fatalf("unexpected positions: %+v", positions)
		}
	})

	t.Run("ListMovementsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		s.Commit(ctx, purchase("p1", "alpha", "rifle", 10, epoch), nil)
		s.Commit(ctx, purchase("p2", "bravo", "rifle", 10, epoch.Add(time.Hour)), nil)
		s.Commit(ctx, transfer("t1", "alpha", "bravo", "rifle", 2, epoch.Add(2*time.Hour)), nil)
		s.Commit(ctx, purchase("p3", "alpha", "truck", 1, epoch.Add(3*time.Hour)), nil)

		tests := []struct {
			name string
			q    domain.MovementQuery
			want []string
		}{
			{"all", domain.MovementQuery{}, []string{"p1", "p2", "t1", "p3"}},
			{"kind", domain.MovementQuery{Kind: domain.KindTransfer}, []string{"t1"}},
			{"base either side", domain.MovementQuery{BaseID: "bravo"}, []string{"p2", "t1"}},
			{"asset", domain.MovementQuery{AssetID: "truck"}, []string{"p3"}},
			{"from base", domain.MovementQuery{FromBaseID: "alpha"}, []string{"t1"}},
			{"to base", domain.MovementQuery{ToBaseID: "bravo"}, []string{"t1"}},
			{"window", domain.MovementQuery{Start: epoch.Add(time.Hour), End: epoch.Add(3 * time.Hour)}, []string{"p2", "t1"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.ListMovements(ctx, tt.q)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if ids := movementIDs(got); fmt.Sprint(ids) != fmt.Sprint(tt.want) {
					t.Errorf("expected %v, got %v", tt.want, ids)
				}
			})
		}
	})

	t.Run("ReferenceData", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.CreateBase(ctx, domain.Base{ID: "b2", Name: "Bravo", CreatedAt: epoch}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.CreateBase(ctx, domain.Base{ID: "b1", Name: "Alpha", CreatedAt: epoch})
		if err := s.CreateBase(ctx, domain.Base{ID: "b1", Name: "Again", CreatedAt: epoch}); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation for duplicate base, got %v", err)
		}
		s.CreateAsset(ctx, domain.Asset{ID: "a1", Name: "Rifle", Type: "WEAPON", CreatedAt: epoch})
		s.CreateUser(ctx, domain.User{ID: "u1", Username: "cmdr", PasswordHash: "x", Role: domain.RoleCommander, BaseID: "b1", CreatedAt: epoch})
		if err := s.CreateUser(ctx, domain.User{ID: "u2", Username: "cmdr", PasswordHash: "x", Role: domain.RoleAdmin, CreatedAt: epoch}); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("expected ErrValidation for taken username, got %v", err)
		}

		bases, _ := s.ListBases(ctx)
		if len(bases) != 2 || bases[0].Name != "Alpha" {
			t.Errorf("expected bases sorted by name, got %+v", bases)
		}
		u, err := s.GetUserByUsername(ctx, "CMDR")
		if err != nil || u == nil || u.BaseID != "b1" || u.Role != domain.RoleCommander {
			t.Errorf("unexpected user lookup: %+v, %v", u, err)
		}
		missing, err := s.GetAsset(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("expected nil asset, got %+v, %v", missing, err)
		}

		o, err := s.Counts(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o != (domain.Overview{TotalBases: 2, TotalAssets: 1, TotalUsers: 1}) {
			t.Errorf("unexpected counts: %+v", o)
		}
	})

	t.Run("ConcurrentTransfersConserveStock", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		s.Commit(ctx, purchase("seed-a", "alpha", "rifle", 20, epoch), nil)
		s.Commit(ctx, purchase("seed-b", "bravo", "rifle", 20, epoch), nil)

		var wg sync.WaitGroup
		var committed atomic.Int32
		for i := 0; i < 40; i++ {
			from, to := "alpha", "bravo"
			if i%2 == 1 {
				from, to = to, from
			}
			wg.Add(1)
			go func(i int, from, to string) {
				defer wg.Done()
				for attempt := 0; attempt < 20; attempt++ {
					_, err := s.Commit(ctx, transfer(fmt.Sprintf("t%d", i), from, to, "rifle", 1, epoch), nil)
					if errors.Is(err, domain.ErrConflict) {
						time.Sleep(time.Millisecond)
						continue
					}
					if err == nil {
						committed.Add(1)
					}
					return
				}
			}(i, from, to)
		}
		wg.Wait()

		positions, _ := s.ListPositions(ctx, "")
		var total int64
		for _, p := range positions {
			if !p.Valid() {
				t.Errorf("invalid position: %+v", p)
			}
			total += p.OnHand
		}
		if total != 40 {
			t.Errorf("expected 40 units across bases, got %d", total)
		}
		if committed.Load() == 0 {
			t.Error("expected some transfers to commit")
		}
	})
}

func movementIDs(ms []domain.Movement) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
