package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

var (
	_ port.LedgerRepository    = (*MemoryStore)(nil)
	_ port.ReferenceRepository = (*MemoryStore)(nil)
)

// MemoryStore keeps the ledger and reference data in process. It backs tests, the stress
// tool and STORE_DRIVER=memory. Commits hold the write lock for the whole check-and-apply,
// reads copy under the read lock.
type MemoryStore struct {
	mu        sync.RWMutex
	log       []domain.Movement
	byID      map[string]int
	positions map[domain.StockKey]domain.StockPosition

	bases  map[string]domain.Base
	assets map[string]domain.Asset
	users  map[string]domain.User
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]int),
		positions: make(map[domain.StockKey]domain.StockPosition),
		bases:     make(map[string]domain.Base),
		assets:    make(map[string]domain.Asset),
		users:     make(map[string]domain.User),
		now:       time.Now,
	}
}

func (s *MemoryStore) Commit(ctx context.Context, m domain.Movement, check port.StockCheck) ([]domain.StockPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[m.ID]; ok {
		return nil, domain.ErrDuplicateEvent
	}

	current := make(map[domain.StockKey]domain.StockPosition, 2)
	for _, k := range domain.SortKeys(m.Keys()) {
		if p, ok := s.positions[k]; ok {
			current[k] = p
		} else {
			current[k] = domain.StockPosition{BaseID: k.BaseID, AssetID: k.AssetID}
		}
	}
	if check != nil {
		if err := check(current); err != nil {
			return nil, err
		}
	}

	next, err := domain.ApplyMovement(current, m, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.byID[m.ID] = len(s.log)
	s.log = append(s.log, m)
	out := make([]domain.StockPosition, 0, len(next))
	for _, k := range domain.SortKeys(m.Keys()) {
		s.positions[k] = next[k]
		out = append(out, next[k])
	}
	return out, nil
}

func (s *MemoryStore) GetMovement(_ context.Context, id string) (*domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	m := s.log[i]
	return &m, nil
}

func (s *MemoryStore) ListMovements(_ context.Context, q domain.MovementQuery) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Movement, 0)
	for _, m := range s.log {
		if q.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, baseID string) ([]domain.StockPosition, error) {
	s.mu.RLock()
	out := make([]domain.StockPosition, 0, len(s.positions))
	for _, p := range s.positions {
		if baseID == "" || p.BaseID == baseID {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (s *MemoryStore) GetBase(_ context.Context, id string) (*domain.Base, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bases[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *MemoryStore) GetAsset(_ context.Context, id string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListBases(_ context.Context) ([]domain.Base, error) {
	s.mu.RLock()
	out := make([]domain.Base, 0, len(s.bases))
	for _, b := range s.bases {
		out = append(out, b)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]domain.Asset, error) {
	s.mu.RLock()
	out := make([]domain.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) CreateBase(_ context.Context, b domain.Base) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bases[b.ID]; ok {
		return fmt.Errorf("%w: base %s already exists", domain.ErrValidation, b.ID)
	}
	s.bases[b.ID] = b
	return nil
}

func (s *MemoryStore) CreateAsset(_ context.Context, a domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[a.ID]; ok {
		return fmt.Errorf("%w: asset %s already exists", domain.ErrValidation, a.ID)
	}
	s.assets[a.ID] = a
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s already exists", domain.ErrValidation, u.ID)
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return fmt.Errorf("%w: username %s is taken", domain.ErrValidation, u.Username)
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) Counts(_ context.Context) (domain.Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Overview{
		TotalBases:  len(s.bases),
		TotalAssets: len(s.assets),
		TotalUsers:  len(s.users),
	}, nil
}
