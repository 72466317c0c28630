package domain

import "time"

// BalanceFilter is an immutable per-request filter. Zero values leave a dimension unconstrained.
// End is exclusive.
type BalanceFilter struct {
	BaseID      string
	AssetType   string
	Start       time.Time
	End         time.Time
	GroupByBase bool
}

// Contains reports whether t falls inside [Start, End).
func (f BalanceFilter) Contains(t time.Time) bool {
	if !f.Start.IsZero() && t.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !t.Before(f.End) {
		return false
	}
	return true
}

// BalanceRow is one rollup line. BaseID and BaseName are set when the row is scoped to a single base.
type BalanceRow struct {
	AssetID        string `json:"assetId"`
	AssetName      string `json:"assetName"`
	AssetType      string `json:"assetType"`
	BaseID         string `json:"baseId,omitempty"`
	BaseName       string `json:"baseName,omitempty"`
	OpeningBalance int64  `json:"openingBalance"`
	Purchases      int64  `json:"purchases"`
	TransfersIn    int64  `json:"transfersIn"`
	TransfersOut   int64  `json:"transfersOut"`
	Assigned       int64  `json:"assigned"`
	Expended       int64  `json:"expended"`
	NetMovement    int64  `json:"netMovement"`
	ClosingBalance int64  `json:"closingBalance"`
	Available      int64  `json:"available"`
}

// MovementQuery filters the log. BaseID matches movements touching the base on either side.
type MovementQuery struct {
	Kind       MovementKind
	AssetID    string
	BaseID     string
	FromBaseID string
	ToBaseID   string
	Start      time.Time
	End        time.Time
}

func (q MovementQuery) Matches(m Movement) bool {
	if q.Kind != "" && m.Kind != q.Kind {
		return false
	}
	if q.AssetID != "" && m.AssetID != q.AssetID {
		return false
	}
	if q.BaseID != "" && !m.Touches(q.BaseID) {
		return false
	}
	if q.FromBaseID != "" && (m.Kind != KindTransfer || m.BaseID != q.FromBaseID) {
		return false
	}
	if q.ToBaseID != "" && (m.Kind != KindTransfer || m.ToBaseID != q.ToBaseID) {
		return false
	}
	return BalanceFilter{Start: q.Start, End: q.End}.Contains(m.CreatedAt)
}
