package port

import (
	"context"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// ReferenceRepository supplies the lookup tables the ledger validates against.
// Getters return nil, nil when the entity does not exist.
type ReferenceRepository interface {
	GetBase(ctx context.Context, id string) (*domain.Base, error)
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	ListBases(ctx context.Context) ([]domain.Base, error)
	ListAssets(ctx context.Context) ([]domain.Asset, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	CreateBase(ctx context.Context, b domain.Base) error
	CreateAsset(ctx context.Context, a domain.Asset) error
	CreateUser(ctx context.Context, u domain.User) error

	Counts(ctx context.Context) (domain.Overview, error)
}
