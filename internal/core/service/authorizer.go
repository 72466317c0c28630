package service

import (
	"fmt"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/sirupsen/logrus"
)

type Operation string

const (
	OpReadBalances      Operation = "balances:read"
	OpReadMovements     Operation = "movements:read"
	OpReadPositions     Operation = "positions:read"
	OpReadOverview      Operation = "overview:read"
	OpReadReference     Operation = "reference:read"
	OpReadUsers         Operation = "users:read"
	OpManageReference   Operation = "reference:write"
	OpRecordPurchase    Operation = "purchase:write"
	OpRecordTransfer    Operation = "transfer:write"
	OpRecordAssignment  Operation = "assignment:write"
	OpRecordExpenditure Operation = "expenditure:write"
)

// policy decides for one role. targetBaseID is empty when the operation spans all bases.
type policy interface {
	allows(p domain.Principal, op Operation, targetBaseID string) bool
}

type adminPolicy struct{}

func (adminPolicy) allows(domain.Principal, Operation, string) bool {
	return true
}

type logisticsPolicy struct{}

func (logisticsPolicy) allows(_ domain.Principal, op Operation, _ string) bool {
	switch op {
	case OpReadBalances, OpReadMovements, OpReadPositions, OpReadReference,
		OpRecordPurchase, OpRecordTransfer:
		return true
	}
	return false
}

type commanderPolicy struct{}

func (commanderPolicy) allows(p domain.Principal, op Operation, targetBaseID string) bool {
	if p.BaseID == "" {
		return false
	}
	switch op {
	case OpReadReference:
		return true
	case OpReadBalances, OpReadMovements, OpReadPositions,
		OpRecordAssignment, OpRecordExpenditure:
		return targetBaseID == p.BaseID
	}
	return false
}

// Authorizer gates every read and write by the caller's role and base.
type Authorizer struct {
	l        logrus.FieldLogger
	policies map[domain.Role]policy
}

func NewAuthorizer(l logrus.FieldLogger) *Authorizer {
	return &Authorizer{
		l: l,
		policies: map[domain.Role]policy{
			domain.RoleAdmin:     adminPolicy{},
			domain.RoleLogistics: logisticsPolicy{},
			domain.RoleCommander: commanderPolicy{},
		},
	}
}

// Authorize returns nil when allowed and domain.ErrForbidden otherwise.
func (a *Authorizer) Authorize(p domain.Principal, op Operation, targetBaseID string) error {
	pol, ok := a.policies[p.Role]
	if ok && pol.allows(p, op, targetBaseID) {
		return nil
	}
	a.l.WithFields(logrus.Fields{
		"user_id":   p.UserID,
		"role":      p.Role,
		"operation": op,
		"base_id":   targetBaseID,
	}).Info("Access denied.")
	return fmt.Errorf("%w: %s", domain.ErrForbidden, op)
}

// ScopeBase fills an omitted base with the commander's own base. Other roles keep the
// request as is, where empty means all bases.
func ScopeBase(p domain.Principal, requested string) string {
	if requested == "" && p.Role == domain.RoleCommander {
		return p.BaseID
	}
	return requested
}
