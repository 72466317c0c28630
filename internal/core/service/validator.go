package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

type Reason string

const (
	ReasonMissingField      Reason = "MISSING_FIELD"
	ReasonUnknownKind       Reason = "UNKNOWN_KIND"
	ReasonInvalidQuantity   Reason = "INVALID_QUANTITY"
	ReasonSameBase          Reason = "SAME_BASE"
	ReasonUnknownAsset      Reason = "UNKNOWN_ASSET"
	ReasonUnknownBase       Reason = "UNKNOWN_BASE"
	ReasonInsufficientStock Reason = "INSUFFICIENT_STOCK"
)

// Decision is the outcome of a movement check. Checks never mutate anything, so a rejected
// movement can be corrected and resubmitted.
type Decision struct {
	Accepted bool
	Reason   Reason
	Detail   string
}

func accept() Decision {
	return Decision{Accepted: true}
}

func reject(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Err maps a rejection onto the error taxonomy. Nil when accepted.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	switch d.Reason {
	case ReasonUnknownAsset, ReasonUnknownBase:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, d.Detail)
	case ReasonInsufficientStock:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, d.Detail)
	default:
		return fmt.Errorf("%w: %s", domain.ErrValidation, d.Detail)
	}
}

// CheckShape validates the fields of a movement on their own.
func CheckShape(m domain.Movement) Decision {
	if !m.Kind.Valid() {
		return reject(ReasonUnknownKind, "unknown movement kind %q", m.Kind)
	}
	if strings.TrimSpace(m.ID) == "" {
		return reject(ReasonMissingField, "id is required")
	}
	if m.Quantity <= 0 {
		return reject(ReasonInvalidQuantity, "quantity must be a positive integer, got %d", m.Quantity)
	}
	if m.Quantity > domain.MaxQuantity {
		return reject(ReasonInvalidQuantity, "quantity must not exceed %d, got %d", domain.MaxQuantity, m.Quantity)
	}
	if m.AssetID == "" {
		return reject(ReasonMissingField, "assetId is required")
	}
	if m.BaseID == "" {
		return reject(ReasonMissingField, "baseId is required")
	}

	switch m.Kind {
	case domain.KindTransfer:
		if m.ToBaseID == "" {
			return reject(ReasonMissingField, "toBaseId is required")
		}
		if m.ToBaseID == m.BaseID {
			return reject(ReasonSameBase, "fromBaseId and toBaseId must differ")
		}
	case domain.KindAssignment:
		if strings.TrimSpace(m.AssignedTo) == "" {
			return reject(ReasonMissingField, "assignedTo is required")
		}
	case domain.KindExpenditure:
		if strings.TrimSpace(m.Reason) == "" {
			return reject(ReasonMissingField, "reason is required")
		}
	}
	return accept()
}

// CheckReferences verifies that the asset and every base the movement names exist.
func CheckReferences(ctx context.Context, refs port.ReferenceRepository, m domain.Movement) (Decision, error) {
	asset, err := refs.GetAsset(ctx, m.AssetID)
	if err != nil {
		return Decision{}, fmt.Errorf("lookup asset: %w", err)
	}
	if asset == nil {
		return reject(ReasonUnknownAsset, "asset %s does not exist", m.AssetID), nil
	}

	bases := []string{m.BaseID}
	if m.Kind == domain.KindTransfer {
		bases = append(bases, m.ToBaseID)
	}
	for _, id := range bases {
		base, err := refs.GetBase(ctx, id)
		if err != nil {
			return Decision{}, fmt.Errorf("lookup base: %w", err)
		}
		if base == nil {
			return reject(ReasonUnknownBase, "base %s does not exist", id), nil
		}
	}
	return accept(), nil
}

// CheckStock validates a movement against the current positions of the keys it touches.
// Assignments draw on unassigned stock. Transfers and expenditures draw on stock on hand and
// may not leave issued units uncovered.
func CheckStock(m domain.Movement, current map[domain.StockKey]domain.StockPosition) Decision {
	src := current[domain.StockKey{BaseID: m.BaseID, AssetID: m.AssetID}]

	switch m.Kind {
	case domain.KindPurchase:
		return accept()
	case domain.KindAssignment:
		if m.Quantity > src.Available() {
			return reject(ReasonInsufficientStock, "requested %d, available %d at base %s", m.Quantity, src.Available(), m.BaseID)
		}
	case domain.KindTransfer, domain.KindExpenditure:
		if m.Quantity > src.OnHand {
			return reject(ReasonInsufficientStock, "requested %d, on hand %d at base %s", m.Quantity, src.OnHand, m.BaseID)
		}
		if src.OnHand-m.Quantity < src.Assigned {
			return reject(ReasonInsufficientStock, "requested %d would leave %d assigned units uncovered at base %s",
				m.Quantity, src.Assigned, m.BaseID)
		}
	default:
		return reject(ReasonUnknownKind, "unknown movement kind %q", m.Kind)
	}
	return accept()
}
