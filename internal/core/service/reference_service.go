package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

// ReferenceService manages bases, the asset catalog and users.
type ReferenceService struct {
	refs  port.ReferenceRepository
	authz *Authorizer
	now   func() time.Time
}

func NewReferenceService(refs port.ReferenceRepository, authz *Authorizer) *ReferenceService {
	return &ReferenceService{refs: refs, authz: authz, now: time.Now}
}

func (s *ReferenceService) ListBases(ctx context.Context, p domain.Principal) ([]domain.Base, error) {
	if err := s.authz.Authorize(p, OpReadReference, ""); err != nil {
		return nil, err
	}
	return s.refs.ListBases(ctx)
}

func (s *ReferenceService) ListAssets(ctx context.Context, p domain.Principal) ([]domain.Asset, error) {
	if err := s.authz.Authorize(p, OpReadReference, ""); err != nil {
		return nil, err
	}
	return s.refs.ListAssets(ctx)
}

func (s *ReferenceService) ListUsers(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := s.authz.Authorize(p, OpReadUsers, ""); err != nil {
		return nil, err
	}
	return s.refs.ListUsers(ctx)
}

func (s *ReferenceService) CreateBase(ctx context.Context, p domain.Principal, name string) (domain.Base, error) {
	if err := s.authz.Authorize(p, OpManageReference, ""); err != nil {
		return domain.Base{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Base{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	b := domain.Base{ID: uuid.NewString(), Name: name, CreatedAt: s.now().UTC()}
	if err := s.refs.CreateBase(ctx, b); err != nil {
		return domain.Base{}, err
	}
	return b, nil
}

func (s *ReferenceService) CreateAsset(ctx context.Context, p domain.Principal, name, assetType string) (domain.Asset, error) {
	if err := s.authz.Authorize(p, OpManageReference, ""); err != nil {
		return domain.Asset{}, err
	}
	name, assetType = strings.TrimSpace(name), strings.TrimSpace(assetType)
	if name == "" || assetType == "" {
		return domain.Asset{}, fmt.Errorf("%w: name and type are required", domain.ErrValidation)
	}
	a := domain.Asset{ID: uuid.NewString(), Name: name, Type: assetType, CreatedAt: s.now().UTC()}
	if err := s.refs.CreateAsset(ctx, a); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}

// CreateUser stores a user whose password is already hashed.
func (s *ReferenceService) CreateUser(ctx context.Context, p domain.Principal, u domain.User) (domain.User, error) {
	if err := s.authz.Authorize(p, OpManageReference, ""); err != nil {
		return domain.User{}, err
	}
	return s.Register(ctx, u)
}

// Register stores a user without an authorization check. Callers decide who may sign up.
func (s *ReferenceService) Register(ctx context.Context, u domain.User) (domain.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" || u.PasswordHash == "" {
		return domain.User{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	role, ok := domain.ParseRole(string(u.Role))
	if !ok {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, u.Role)
	}
	u.Role = role
	if u.Role == domain.RoleCommander && u.BaseID == "" {
		return domain.User{}, fmt.Errorf("%w: a commander needs a baseId", domain.ErrValidation)
	}
	if u.BaseID != "" {
		b, err := s.refs.GetBase(ctx, u.BaseID)
		if err != nil {
			return domain.User{}, fmt.Errorf("lookup base: %w", err)
		}
		if b == nil {
			return domain.User{}, fmt.Errorf("%w: base %s", domain.ErrNotFound, u.BaseID)
		}
	}
	existing, err := s.refs.GetUserByUsername(ctx, u.Username)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return domain.User{}, fmt.Errorf("%w: username %s is taken", domain.ErrValidation, u.Username)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now().UTC()
	if err := s.refs.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
