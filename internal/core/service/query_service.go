package service

import (
	"context"
	"fmt"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

// QueryService answers dashboard and listing reads within the caller's read scope.
type QueryService struct {
	ledger *Ledger
	refs   port.ReferenceRepository
	authz  *Authorizer
}

func NewQueryService(ledger *Ledger, refs port.ReferenceRepository, authz *Authorizer) *QueryService {
	return &QueryService{ledger: ledger, refs: refs, authz: authz}
}

func (s *QueryService) Balances(ctx context.Context, p domain.Principal, f domain.BalanceFilter) ([]domain.BalanceRow, error) {
	f.BaseID = ScopeBase(p, f.BaseID)
	if err := s.authz.Authorize(p, OpReadBalances, f.BaseID); err != nil {
		return nil, err
	}
	if err := s.requireBase(ctx, f.BaseID); err != nil {
		return nil, err
	}
	return s.ledger.ComputeBalances(ctx, f)
}

// Overview counts reference entities. Filters do not apply.
func (s *QueryService) Overview(ctx context.Context, p domain.Principal) (domain.Overview, error) {
	if err := s.authz.Authorize(p, OpReadOverview, ""); err != nil {
		return domain.Overview{}, err
	}
	return s.refs.Counts(ctx)
}

func (s *QueryService) Movements(ctx context.Context, p domain.Principal, q domain.MovementQuery) ([]domain.Movement, error) {
	q.BaseID = ScopeBase(p, q.BaseID)
	if err := s.authz.Authorize(p, OpReadMovements, q.BaseID); err != nil {
		return nil, err
	}
	if err := s.requireBase(ctx, q.BaseID); err != nil {
		return nil, err
	}
	return s.ledger.Movements(ctx, q)
}

func (s *QueryService) Positions(ctx context.Context, p domain.Principal, baseID string) ([]domain.StockPosition, error) {
	baseID = ScopeBase(p, baseID)
	if err := s.authz.Authorize(p, OpReadPositions, baseID); err != nil {
		return nil, err
	}
	if err := s.requireBase(ctx, baseID); err != nil {
		return nil, err
	}
	return s.ledger.Positions(ctx, baseID)
}

// requireBase runs after authorization so that a denied caller learns nothing about existence.
func (s *QueryService) requireBase(ctx context.Context, baseID string) error {
	if baseID == "" {
		return nil
	}
	b, err := s.refs.GetBase(ctx, baseID)
	if err != nil {
		return fmt.Errorf("lookup base: %w", err)
	}
	if b == nil {
		return fmt.Errorf("%w: base %s", domain.ErrNotFound, baseID)
	}
	return nil
}
