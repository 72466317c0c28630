package service

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/asset-ledger/internal/adapter/storage"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
)

var (
	admin     = domain.Principal{UserID: "u-admin", Role: domain.RoleAdmin}
	logistics = domain.Principal{UserID: "u-log", Role: domain.RoleLogistics}
	cmdrA     = domain.Principal{UserID: "u-cmdr-a", Role: domain.RoleCommander, BaseID: "A"}
	cmdrB     = domain.Principal{UserID: "u-cmdr-b", Role: domain.RoleCommander, BaseID: "B"}
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newStore returns a memory store with bases A and B, a rifle and a truck.
func newStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := storage.NewMemoryStore()
	s.CreateBase(ctx, domain.Base{ID: "A", Name: "Alpha"})
	s.CreateBase(ctx, domain.Base{ID: "B", Name: "Bravo"})
	s.CreateAsset(ctx, domain.Asset{ID: "rifle", Name: "Rifle", Type: "WEAPON"})
	s.CreateAsset(ctx, domain.Asset{ID: "truck", Name: "Truck", Type: "VEHICLE"})
	return s
}

func newLedger(t *testing.T, repo port.LedgerRepository, refs port.ReferenceRepository, cfg LedgerConfig) *Ledger {
	t.Helper()
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return NewLedger(quietLogger(), repo, refs, cfg)
}

// flakyRepo fails the first n commits with a conflict before delegating.
type flakyRepo struct {
	port.LedgerRepository
	failures atomic.Int32
	calls    atomic.Int32
}

func (r *flakyRepo) Commit(ctx context.Context, m domain.Movement, check port.StockCheck) ([]domain.StockPosition, error) {
	r.calls.Add(1)
	if r.failures.Add(-1) >= 0 {
		return nil, domain.ErrConflict
	}
	return r.LedgerRepository.Commit(ctx, m, check)
}

// mockCache records what the ledger stores and serves it back.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]domain.Movement
	lookups int
	err     error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]domain.Movement)}
}

func (c *mockCache) LookupMovement(_ context.Context, id string) (*domain.Movement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.err != nil {
		return nil, c.err
	}
	m, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (c *mockCache) RememberMovement(_ context.Context, m domain.Movement) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.entries[m.ID]; ok {
		return false, nil
	}
	c.entries[m.ID] = m
	return true, nil
}

type countingRecorder struct {
	mu        sync.Mutex
	committed int
	rejected  map[string]int
	replayed  int
	retried   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{rejected: make(map[string]int)}
}

func (r *countingRecorder) MovementCommitted(domain.MovementKind, time.Duration) {
	r.mu.Lock()
	r.committed++
	r.mu.Unlock()
}

func (r *countingRecorder) MovementRejected(_ domain.MovementKind, reason string) {
	r.mu.Lock()
	r.rejected[reason]++
	r.mu.Unlock()
}

func (r *countingRecorder) MovementReplayed(domain.MovementKind) {
	r.mu.Lock()
	r.replayed++
	r.mu.Unlock()
}

func (r *countingRecorder) CommitRetried(domain.MovementKind) {
	r.mu.Lock()
	r.retried++
	r.mu.Unlock()
}

func purchaseOf(id, base, asset string, qty int64) domain.Movement {
	return domain.Purchase{ID: id, BaseID: base, AssetID: asset, Quantity: qty, CreatedBy: "u-admin"}.Movement()
}

func transferOf(id, from, to, asset string, qty int64) domain.Movement {
	return domain.Transfer{ID: id, FromBaseID: from, ToBaseID: to, AssetID: asset, Quantity: qty, CreatedBy: "u-admin"}.Movement()
}

func assignmentOf(id, base, asset, who string, qty int64) domain.Movement {
	return domain.Assignment{ID: id, BaseID: base, AssetID: asset, AssignedTo: who, Quantity: qty, CreatedBy: "u-admin"}.Movement()
}

func expenditureOf(id, base, asset, reason string, qty int64) domain.Movement {
	return domain.Expenditure{ID: id, BaseID: base, AssetID: asset, Reason: reason, Quantity: qty, CreatedBy: "u-admin"}.Movement()
}

func mustApply(t *testing.T, l *Ledger, m domain.Movement) Applied {
	t.Helper()
	a, err := l.Apply(context.Background(), m)
	if err != nil {
		t.Fatalf("apply %s: %v", m.ID, err)
	}
	return a
}

func rowFor(rows []domain.BalanceRow, assetID, baseID string) (domain.BalanceRow, bool) {
	for _, r := range rows {
		if r.AssetID == assetID && r.BaseID == baseID {
			return r, true
		}
	}
	return domain.BalanceRow{}, false
}
