package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

func day(d int) time.Time {
	return time.Date(2026, time.January, d, 12, 0, 0, 0, time.UTC)
}

func newQueryFixture(t *testing.T) *QueryService {
	t.Helper()
	store := newStore(t)
	l := newLedger(t, store, store, LedgerConfig{})

	history := []domain.Movement{
		purchaseOf("p1", "A", "rifle", 10),
		assignmentOf("a1", "A", "rifle", "pvt-ryan", 2),
		transferOf("t1", "A", "B", "rifle", 3),
		purchaseOf("p2", "B", "truck", 4),
		expenditureOf("e1", "B", "rifle", "training", 1),
	}
	days := []int{1, 1, 3, 3, 4}
	for i, m := range history {
		m.CreatedAt = day(days[i])
		mustApply(t, l, m)
	}
	return NewQueryService(l, store, NewAuthorizer(quietLogger()))
}

func TestQueryService_BalancesWindow(t *testing.T) {
	s := newQueryFixture(t)
	f := domain.BalanceFilter{BaseID: "A", Start: day(2).Truncate(24 * time.Hour), End: day(5).Truncate(24 * time.Hour)}

	rows, err := s.Balances(context.Background(), admin, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := rowFor(rows, "rifle", "A")
	if !ok {
		t.Fatalf("no rifle row for A in %+v", rows)
	}
	if r.OpeningBalance != 10 || r.TransfersOut != 3 || r.ClosingBalance != 7 {
		t.Errorf("unexpected rollup %+v", r)
	}
	if r.Assigned != 0 || r.Available != 5 {
		t.Errorf("expected opening assignment to reduce available to 5, got %+v", r)
	}
	if r.NetMovement != -3 || r.BaseName != "Alpha" {
		t.Errorf("unexpected net or base name %+v", r)
	}
}

func TestQueryService_BalancesAllBases(t *testing.T) {
	s := newQueryFixture(t)

	rows, err := s.Balances(context.Background(), logistics, domain.BalanceFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one row per asset, got %+v", rows)
	}
	r, _ := rowFor(rows, "rifle", "")
	if r.Purchases != 10 || r.TransfersIn != 3 || r.TransfersOut != 3 || r.Expended != 1 {
		t.Errorf("unexpected rifle rollup %+v", r)
	}
	if r.ClosingBalance != 9 || r.Available != 7 {
		t.Errorf("expected closing 9 available 7, got %+v", r)
	}
	if rows[0].AssetName != "Rifle" {
		t.Errorf("expected rows sorted by asset name, got %+v", rows)
	}

	grouped, err := s.Balances(context.Background(), logistics, domain.BalanceFilter{GroupByBase: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grouped) != 3 {
		t.Errorf("expected rifle@A, rifle@B and truck@B, got %+v", grouped)
	}
}

func TestQueryService_AssetTypeFilter(t *testing.T) {
	s := newQueryFixture(t)

	rows, err := s.Balances(context.Background(), admin, domain.BalanceFilter{AssetType: "vehicle"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].AssetID != "truck" || rows[0].ClosingBalance != 4 {
		t.Errorf("expected only the truck, got %+v", rows)
	}
}

func TestQueryService_CommanderScope(t *testing.T) {
	s := newQueryFixture(t)
	ctx := context.Background()

	rows, err := s.Balances(ctx, cmdrA, domain.BalanceFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range rows {
		if r.BaseID != "A" {
			t.Errorf("commander saw base %s", r.BaseID)
		}
	}

	if _, err := s.Balances(ctx, cmdrA, domain.BalanceFilter{BaseID: "B"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for other base, got %v", err)
	}
	if _, err := s.Balances(ctx, cmdrA, domain.BalanceFilter{BaseID: "ghost"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden before existence check, got %v", err)
	}
	if _, err := s.Balances(ctx, admin, domain.BalanceFilter{BaseID: "ghost"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for admin, got %v", err)
	}

	moves, err := s.Movements(ctx, cmdrA, domain.MovementQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moves) != 3 {
		t.Errorf("expected 3 movements touching A, got %d", len(moves))
	}

	moves, err = s.Movements(ctx, cmdrB, domain.MovementQuery{Kind: domain.KindTransfer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(moves) != 1 || moves[0].ID != "t1" {
		t.Errorf("expected incoming transfer t1 for B, got %+v", moves)
	}

	positions, err := s.Positions(ctx, cmdrB, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range positions {
		if p.BaseID != "B" {
			t.Errorf("commander B saw position at %s", p.BaseID)
		}
	}
}

func TestQueryService_Overview(t *testing.T) {
	s := newQueryFixture(t)
	ctx := context.Background()

	o, err := s.Overview(ctx, admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.TotalBases != 2 || o.TotalAssets != 2 {
		t.Errorf("unexpected overview %+v", o)
	}

	for _, p := range []domain.Principal{logistics, cmdrA} {
		if _, err := s.Overview(ctx, p); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("%s: expected ErrForbidden, got %v", p.Role, err)
		}
	}
}
