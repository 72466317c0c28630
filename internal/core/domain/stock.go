package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// StockKey identifies one stock position.
type StockKey struct {
	BaseID  string
	AssetID string
}

func (k StockKey) String() string {
	return k.BaseID + ":" + k.AssetID
}

// Less is the global lock order: base id first, then asset id.
func (k StockKey) Less(o StockKey) bool {
	if k.BaseID != o.BaseID {
		return k.BaseID < o.BaseID
	}
	return k.AssetID < o.AssetID
}

// SortKeys orders keys by the global lock order and drops duplicates.
func SortKeys(keys []StockKey) []StockKey {
	out := make([]StockKey, 0, len(keys))
	seen := make(map[StockKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// StockPosition is the materialized quantity for one (base, asset).
// OnHand counts everything physically held by the base, Assigned the part of it issued to people.
type StockPosition struct {
	BaseID    string    `json:"baseId" db:"base_id"`
	AssetID   string    `json:"assetId" db:"asset_id"`
	OnHand    int64     `json:"onHand" db:"on_hand"`
	Assigned  int64     `json:"assigned" db:"assigned"`
	Version   int64     `json:"version" db:"version"` // optimistic locking
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func (p StockPosition) Key() StockKey {
	return StockKey{BaseID: p.BaseID, AssetID: p.AssetID}
}

func (p StockPosition) Available() int64 {
	return p.OnHand - p.Assigned
}

func (p StockPosition) Valid() bool {
	return p.OnHand >= 0 && p.Assigned >= 0 && p.Assigned <= p.OnHand
}

// ApplyMovement returns the positions for m's keys after m is applied. Missing entries in
// current are treated as empty positions. Versions are bumped by one.
func ApplyMovement(current map[StockKey]StockPosition, m Movement, at time.Time) (map[StockKey]StockPosition, error) {
	next := make(map[StockKey]StockPosition, 2)
	get := func(k StockKey) StockPosition {
		if p, ok := next[k]; ok {
			return p
		}
		p, ok := current[k]
		if !ok {
			p = StockPosition{BaseID: k.BaseID, AssetID: k.AssetID}
		}
		return p
	}
	put := func(p StockPosition) {
		next[p.Key()] = p
	}

	if m.Quantity < 0 {
		return nil, fmt.Errorf("%w: negative quantity %d", ErrValidation, m.Quantity)
	}

	var err error
	src := get(StockKey{BaseID: m.BaseID, AssetID: m.AssetID})
	switch m.Kind {
	case KindPurchase:
		src.OnHand, err = addQuantity(src.OnHand, m.Quantity, src.Key())
	case KindExpenditure:
		src.OnHand -= m.Quantity
	case KindAssignment:
		src.Assigned, err = addQuantity(src.Assigned, m.Quantity, src.Key())
	case KindTransfer:
		src.OnHand -= m.Quantity
		put(bump(src, at))
		dst := get(StockKey{BaseID: m.ToBaseID, AssetID: m.AssetID})
		dst.OnHand, err = addQuantity(dst.OnHand, m.Quantity, dst.Key())
		src = dst
	default:
		return nil, fmt.Errorf("%w: unknown movement kind %q", ErrValidation, m.Kind)
	}
	if err != nil {
		return nil, err
	}
	put(bump(src, at))

	for _, p := range next {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %s would hold %d with %d assigned", ErrInsufficientStock, p.Key(), p.OnHand, p.Assigned)
		}
	}
	return next, nil
}

// addQuantity adds q to a non-negative total, refusing to wrap around.
func addQuantity(total, q int64, k StockKey) (int64, error) {
	if total > math.MaxInt64-q {
		return 0, fmt.Errorf("%w: %s cannot hold %d more units", ErrValidation, k, q)
	}
	return total + q, nil
}

func bump(p StockPosition, at time.Time) StockPosition {
	p.Version++
	p.UpdatedAt = at
	return p
}
