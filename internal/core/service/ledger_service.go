package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
)

// Applied is the result of Ledger.Apply. Positions is empty for a replay.
type Applied struct {
	Movement  domain.Movement
	Positions []domain.StockPosition
	Replayed  bool
}

type LedgerConfig struct {
	QueueSize     int
	CommitRetries int
	RetryBackoff  time.Duration
	LockTimeout   time.Duration
	Cache         port.CacheRepository
	Metrics       MetricsRecorder
	Now           func() time.Time
}

// Ledger is the single source of truth for how much exists where. Apply is the only way to
// change stock; ComputeBalances, Positions and Movements are the only ways to read it.
type Ledger struct {
	l         logrus.FieldLogger
	repo      port.LedgerRepository
	refs      port.ReferenceRepository
	cache     port.CacheRepository
	metrics   MetricsRecorder
	commits   *committer
	transfers *TransferCoordinator
	now       func() time.Time

	queueMu     sync.RWMutex
	queueClosed bool
	commitQueue chan domain.Movement
}

func NewLedger(l logrus.FieldLogger, repo port.LedgerRepository, refs port.ReferenceRepository, cfg LedgerConfig) *Ledger {
	if cfg.Metrics == nil {
		cfg.Metrics = noopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 10 * time.Millisecond
	}

	c := &committer{
		l:       l,
		repo:    repo,
		locks:   newLockRegistry(cfg.LockTimeout),
		metrics: cfg.Metrics,
		retries: cfg.CommitRetries,
		backoff: cfg.RetryBackoff,
	}
	led := &Ledger{
		l:         l,
		repo:      repo,
		refs:      refs,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		commits:   c,
		transfers: newTransferCoordinator(c),
		now:       cfg.Now,
	}
	if cfg.QueueSize > 0 {
		led.commitQueue = make(chan domain.Movement, cfg.QueueSize)
	}
	return led
}

// Apply validates and commits one movement. Re-applying a committed id with the same payload
// returns the stored movement with Replayed set and changes nothing.
func (l *Ledger) Apply(ctx context.Context, m domain.Movement) (Applied, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = l.now().UTC()
	}

	if d := CheckShape(m); !d.Accepted {
		l.metrics.MovementRejected(m.Kind, string(d.Reason))
		return Applied{}, d.Err()
	}

	prior, err := l.lookup(ctx, m.ID)
	if err != nil {
		return Applied{}, err
	}
	if prior != nil {
		return l.replay(m, *prior)
	}

	d, err := CheckReferences(ctx, l.refs, m)
	if err != nil {
		return Applied{}, err
	}
	if !d.Accepted {
		l.metrics.MovementRejected(m.Kind, string(d.Reason))
		return Applied{}, d.Err()
	}

	started := time.Now()
	var positions []domain.StockPosition
	if m.Kind == domain.KindTransfer {
		positions, err = l.transfers.Execute(ctx, m)
	} else {
		positions, err = l.commits.commit(ctx, m)
	}

	if errors.Is(err, domain.ErrDuplicateEvent) {
		// Lost a race against a concurrent retry of the same event.
		stored, lerr := l.repo.GetMovement(ctx, m.ID)
		if lerr != nil {
			return Applied{}, fmt.Errorf("%w: reload %s: %v", domain.ErrConflict, m.ID, lerr)
		}
		if stored == nil {
			return Applied{}, fmt.Errorf("%w: %s", domain.ErrConflict, err)
		}
		return l.replay(m, *stored)
	}
	if err != nil {
		l.metrics.MovementRejected(m.Kind, rejectionLabel(err))
		return Applied{}, err
	}

	l.metrics.MovementCommitted(m.Kind, time.Since(started))
	l.l.WithFields(logrus.Fields{
		"movement_id": m.ID,
		"kind":        m.Kind,
		"asset_id":    m.AssetID,
		"base_id":     m.BaseID,
		"quantity":    m.Quantity,
	}).Debug("Movement committed.")
	l.publish(m)

	return Applied{Movement: m, Positions: positions}, nil
}

func (l *Ledger) lookup(ctx context.Context, id string) (*domain.Movement, error) {
	if l.cache != nil {
		cached, err := l.cache.LookupMovement(ctx, id)
		if err != nil {
			l.l.WithError(err).Warn("Idempotency cache lookup failed, falling back to ledger.")
		} else if cached != nil {
			return cached, nil
		}
	}
	stored, err := l.repo.GetMovement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup movement: %w", err)
	}
	return stored, nil
}

func (l *Ledger) replay(m domain.Movement, stored domain.Movement) (Applied, error) {
	if !stored.SamePayload(m) {
		l.metrics.MovementRejected(m.Kind, "ID_REUSED")
		return Applied{}, fmt.Errorf("%w: event id %s already used for a different movement", domain.ErrValidation, m.ID)
	}
	l.metrics.MovementReplayed(m.Kind)
	return Applied{Movement: stored, Replayed: true}, nil
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return string(ReasonInsufficientStock)
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, domain.ErrValidation):
		return "VALIDATION"
	default:
		return "STORAGE"
	}
}

func (l *Ledger) publish(m domain.Movement) {
	l.queueMu.RLock()
	defer l.queueMu.RUnlock()
	if l.commitQueue == nil || l.queueClosed {
		return
	}
	select {
	case l.commitQueue <- m:
	default:
		l.l.WithField("movement_id", m.ID).Warn("Commit queue full, skipping cache warm-up.")
	}
}

// GetCommitQueue exposes committed movements for background workers. Nil when disabled.
func (l *Ledger) GetCommitQueue() <-chan domain.Movement {
	return l.commitQueue
}

func (l *Ledger) Close() {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	if l.commitQueue != nil && !l.queueClosed {
		l.queueClosed = true
		close(l.commitQueue)
	}
}

func (l *Ledger) Positions(ctx context.Context, baseID string) ([]domain.StockPosition, error) {
	return l.repo.ListPositions(ctx, baseID)
}

func (l *Ledger) Movements(ctx context.Context, q domain.MovementQuery) ([]domain.Movement, error) {
	return l.repo.ListMovements(ctx, q)
}

type leg struct {
	baseID string
	apply  func(r *rollup, qty int64, opening bool)
}

type rollup struct {
	row             domain.BalanceRow
	openingAssigned int64
}

func purchaseLeg(r *rollup, q int64, opening bool) {
	if opening {
		r.row.OpeningBalance += q
		return
	}
	r.row.Purchases += q
}

func expenditureLeg(r *rollup, q int64, opening bool) {
	if opening {
		r.row.OpeningBalance -= q
		return
	}
	r.row.Expended += q
}

func assignmentLeg(r *rollup, q int64, opening bool) {
	if opening {
		r.openingAssigned += q
		return
	}
	r.row.Assigned += q
}

func transferOutLeg(r *rollup, q int64, opening bool) {
	if opening {
		r.row.OpeningBalance -= q
		return
	}
	r.row.TransfersOut += q
}

func transferInLeg(r *rollup, q int64, opening bool) {
	if opening {
		r.row.OpeningBalance += q
		return
	}
	r.row.TransfersIn += q
}

func legsOf(m domain.Movement) []leg {
	switch m.Kind {
	case domain.KindPurchase:
		return []leg{{m.BaseID, purchaseLeg}}
	case domain.KindExpenditure:
		return []leg{{m.BaseID, expenditureLeg}}
	case domain.KindAssignment:
		return []leg{{m.BaseID, assignmentLeg}}
	case domain.KindTransfer:
		return []leg{{m.BaseID, transferOutLeg}, {m.ToBaseID, transferInLeg}}
	}
	return nil
}

// ComputeBalances folds the log up to f.End into one row per asset, or per asset and base
// when the filter names a base or asks for grouping. Events before f.Start make up the
// opening balance. Rows come back sorted by asset name, asset id, base name, base id.
func (l *Ledger) ComputeBalances(ctx context.Context, f domain.BalanceFilter) ([]domain.BalanceRow, error) {
	assets, err := l.refs.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	catalog := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		catalog[a.ID] = a
	}

	perBase := f.GroupByBase || f.BaseID != ""
	baseNames := map[string]string{}
	if perBase {
		bases, err := l.refs.ListBases(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bases: %w", err)
		}
		for _, b := range bases {
			baseNames[b.ID] = b.Name
		}
	}

	movements, err := l.repo.ListMovements(ctx, domain.MovementQuery{BaseID: f.BaseID, End: f.End})
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	type rowKey struct{ assetID, baseID string }
	acc := make(map[rowKey]*rollup)
	for _, m := range movements {
		asset, ok := catalog[m.AssetID]
		if !ok {
			continue
		}
		if f.AssetType != "" && !strings.EqualFold(asset.Type, f.AssetType) {
			continue
		}
		opening := !f.Start.IsZero() && m.CreatedAt.Before(f.Start)

		for _, lg := range legsOf(m) {
			if f.BaseID != "" && lg.baseID != f.BaseID {
				continue
			}
			k := rowKey{assetID: asset.ID}
			if perBase {
				k.baseID = lg.baseID
			}
			r, ok := acc[k]
			if !ok {
				r = &rollup{row: domain.BalanceRow{
					AssetID:   asset.ID,
					AssetName: asset.Name,
					AssetType: asset.Type,
					BaseID:    k.baseID,
					BaseName:  baseNames[k.baseID],
				}}
				acc[k] = r
			}
			lg.apply(r, m.Quantity, opening)
		}
	}

	rows := make([]domain.BalanceRow, 0, len(acc))
	for _, r := range acc {
		row := r.row
		row.NetMovement = row.TransfersIn - row.TransfersOut
		row.ClosingBalance = row.OpeningBalance + row.Purchases - row.TransfersOut + row.TransfersIn - row.Expended
		row.Available = row.ClosingBalance - r.openingAssigned - row.Assigned
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.AssetName != b.AssetName {
			return a.AssetName < b.AssetName
		}
		if a.AssetID != b.AssetID {
			return a.AssetID < b.AssetID
		}
		if a.BaseName != b.BaseName {
			return a.BaseName < b.BaseName
		}
		return a.BaseID < b.BaseID
	})
	return rows, nil
}
