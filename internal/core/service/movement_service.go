package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// MovementService is the write side: scope, authorize, then hand the event to the ledger.
type MovementService struct {
	ledger *Ledger
	authz  *Authorizer
	newID  func() string
}

func NewMovementService(ledger *Ledger, authz *Authorizer) *MovementService {
	return &MovementService{ledger: ledger, authz: authz, newID: uuid.NewString}
}

// ID is the client supplied event id. Retrying with the same ID never records twice.
type PurchaseRequest struct {
	ID       string
	AssetID  string
	BaseID   string
	Quantity int64
}

type TransferRequest struct {
	ID         string
	AssetID    string
	FromBaseID string
	ToBaseID   string
	Quantity   int64
}

type AssignmentRequest struct {
	ID         string
	AssetID    string
	BaseID     string
	AssignedTo string
	Quantity   int64
}

type ExpenditureRequest struct {
	ID       string
	AssetID  string
	BaseID   string
	Reason   string
	Quantity int64
}

func (s *MovementService) RecordPurchase(ctx context.Context, p domain.Principal, req PurchaseRequest) (domain.Purchase, bool, error) {
	m, err := s.prepare(p, OpRecordPurchase, req.ID, req.BaseID)
	if err != nil {
		return domain.Purchase{}, false, err
	}
	m.Kind = domain.KindPurchase
	m.AssetID = req.AssetID
	m.Quantity = req.Quantity

	applied, err := s.ledger.Apply(ctx, m)
	if err != nil {
		return domain.Purchase{}, false, err
	}
	return applied.Movement.Purchase(), applied.Replayed, nil
}

// RecordTransfer authorizes against the source base, which defaults to the caller's own.
func (s *MovementService) RecordTransfer(ctx context.Context, p domain.Principal, req TransferRequest) (domain.Transfer, bool, error) {
	m, err := s.prepare(p, OpRecordTransfer, req.ID, req.FromBaseID)
	if err != nil {
		return domain.Transfer{}, false, err
	}
	m.Kind = domain.KindTransfer
	m.AssetID = req.AssetID
	m.ToBaseID = req.ToBaseID
	m.Quantity = req.Quantity

	applied, err := s.ledger.Apply(ctx, m)
	if err != nil {
		return domain.Transfer{}, false, err
	}
	return applied.Movement.Transfer(), applied.Replayed, nil
}

func (s *MovementService) RecordAssignment(ctx context.Context, p domain.Principal, req AssignmentRequest) (domain.Assignment, bool, error) {
	m, err := s.prepare(p, OpRecordAssignment, req.ID, req.BaseID)
	if err != nil {
		return domain.Assignment{}, false, err
	}
	m.Kind = domain.KindAssignment
	m.AssetID = req.AssetID
	m.AssignedTo = strings.TrimSpace(req.AssignedTo)
	m.Quantity = req.Quantity

	applied, err := s.ledger.Apply(ctx, m)
	if err != nil {
		return domain.Assignment{}, false, err
	}
	return applied.Movement.Assignment(), applied.Replayed, nil
}

func (s *MovementService) RecordExpenditure(ctx context.Context, p domain.Principal, req ExpenditureRequest) (domain.Expenditure, bool, error) {
	m, err := s.prepare(p, OpRecordExpenditure, req.ID, req.BaseID)
	if err != nil {
		return domain.Expenditure{}, false, err
	}
	m.Kind = domain.KindExpenditure
	m.AssetID = req.AssetID
	m.Reason = strings.TrimSpace(req.Reason)
	m.Quantity = req.Quantity

	applied, err := s.ledger.Apply(ctx, m)
	if err != nil {
		return domain.Expenditure{}, false, err
	}
	return applied.Movement.Expenditure(), applied.Replayed, nil
}

func (s *MovementService) prepare(p domain.Principal, op Operation, id, baseID string) (domain.Movement, error) {
	if baseID == "" {
		baseID = p.BaseID
	}
	if err := s.authz.Authorize(p, op, baseID); err != nil {
		return domain.Movement{}, err
	}
	if baseID == "" {
		return domain.Movement{}, fmt.Errorf("%w: baseId is required", domain.ErrValidation)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = s.newID()
	}
	return domain.Movement{ID: id, BaseID: baseID, CreatedBy: p.UserID}, nil
}
