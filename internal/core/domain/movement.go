package domain

import "time"

type MovementKind string

const (
	KindPurchase    MovementKind = "PURCHASE"
	KindTransfer    MovementKind = "TRANSFER"
	KindAssignment  MovementKind = "ASSIGNMENT"
	KindExpenditure MovementKind = "EXPENDITURE"
)

// MaxQuantity bounds a single movement. Positions and rollups stay far from int64 overflow
// as long as every event respects it.
const MaxQuantity int64 = 1_000_000_000

func (k MovementKind) Valid() bool {
	switch k {
	case KindPurchase, KindTransfer, KindAssignment, KindExpenditure:
		return true
	}
	return false
}

// Movement is one committed ledger event. BaseID is the base of purchases, assignments and
// expenditures and the source of a transfer. ToBaseID is set for transfers only.
// A Movement is never modified after commit.
type Movement struct {
	ID         string       `json:"id" db:"id"`
	Kind       MovementKind `json:"kind" db:"kind"`
	AssetID    string       `json:"assetId" db:"asset_id"`
	BaseID     string       `json:"baseId" db:"base_id"`
	ToBaseID   string       `json:"toBaseId,omitempty" db:"to_base_id"`
	Quantity   int64        `json:"quantity" db:"quantity"`
	AssignedTo string       `json:"assignedTo,omitempty" db:"assigned_to"`
	Reason     string       `json:"reason,omitempty" db:"reason"`
	CreatedBy  string       `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
}

// Keys returns the stock positions the movement touches.
func (m Movement) Keys() []StockKey {
	if m.Kind == KindTransfer {
		return []StockKey{{BaseID: m.BaseID, AssetID: m.AssetID}, {BaseID: m.ToBaseID, AssetID: m.AssetID}}
	}
	return []StockKey{{BaseID: m.BaseID, AssetID: m.AssetID}}
}

// Touches reports whether the movement affects the given base.
func (m Movement) Touches(baseID string) bool {
	return m.BaseID == baseID || (m.Kind == KindTransfer && m.ToBaseID == baseID)
}

// SamePayload compares everything a client supplies, ignoring server stamped fields.
// It decides whether a repeated event id is a retry or a reuse.
func (m Movement) SamePayload(o Movement) bool {
	return m.ID == o.ID &&
		m.Kind == o.Kind &&
		m.AssetID == o.AssetID &&
		m.BaseID == o.BaseID &&
		m.ToBaseID == o.ToBaseID &&
		m.Quantity == o.Quantity &&
		m.AssignedTo == o.AssignedTo &&
		m.Reason == o.Reason
}

type Purchase struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"assetId"`
	BaseID    string    `json:"baseId"`
	Quantity  int64     `json:"quantity"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Transfer struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"assetId"`
	FromBaseID string    `json:"fromBaseId"`
	ToBaseID   string    `json:"toBaseId"`
	Quantity   int64     `json:"quantity"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Assignment struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"assetId"`
	BaseID     string    `json:"baseId"`
	AssignedTo string    `json:"assignedTo"`
	Quantity   int64     `json:"quantity"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Expenditure struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"assetId"`
	BaseID    string    `json:"baseId"`
	Reason    string    `json:"reason"`
	Quantity  int64     `json:"quantity"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Purchase) Movement() Movement {
	return Movement{ID: p.ID, Kind: KindPurchase, AssetID: p.AssetID, BaseID: p.BaseID,
		Quantity: p.Quantity, CreatedBy: p.CreatedBy, CreatedAt: p.CreatedAt}
}

func (t Transfer) Movement() Movement {
	return Movement{ID: t.ID, Kind: KindTransfer, AssetID: t.AssetID, BaseID: t.FromBaseID,
		ToBaseID: t.ToBaseID, Quantity: t.Quantity, CreatedBy: t.CreatedBy, CreatedAt: t.CreatedAt}
}

func (a Assignment) Movement() Movement {
	return Movement{ID: a.ID, Kind: KindAssignment, AssetID: a.AssetID, BaseID: a.BaseID,
		AssignedTo: a.AssignedTo, Quantity: a.Quantity, CreatedBy: a.CreatedBy, CreatedAt: a.CreatedAt}
}

func (e Expenditure) Movement() Movement {
	return Movement{ID: e.ID, Kind: KindExpenditure, AssetID: e.AssetID, BaseID: e.BaseID,
		Reason: e.Reason, Quantity: e.Quantity, CreatedBy: e.CreatedBy, CreatedAt: e.CreatedAt}
}

func (m Movement) Purchase() Purchase {
	return Purchase{ID: m.ID, AssetID: m.AssetID, BaseID: m.BaseID, Quantity: m.Quantity,
		CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}

func (m Movement) Transfer() Transfer {
	return Transfer{ID: m.ID, AssetID: m.AssetID, FromBaseID: m.BaseID, ToBaseID: m.ToBaseID,
		Quantity: m.Quantity, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}

func (m Movement) Assignment() Assignment {
	return Assignment{ID: m.ID, AssetID: m.AssetID, BaseID: m.BaseID, AssignedTo: m.AssignedTo,
		Quantity: m.Quantity, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}

func (m Movement) Expenditure() Expenditure {
	return Expenditure{ID: m.ID, AssetID: m.AssetID, BaseID: m.BaseID, Reason: m.Reason,
		Quantity: m.Quantity, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}
