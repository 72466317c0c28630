package handler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rl1809/asset-ledger/internal/adapter/storage"
	"github.com/rl1809/asset-ledger/internal/auth"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
)

type fixture struct {
	store     *storage.MemoryStore
	auth      *auth.Service
	movements *service.MovementService
	queries   *service.QueryService
	refs      *service.ReferenceService
	tokens    map[domain.Role]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil)
}

// newFixtureWithRepo lets a test put wrap between the ledger and the store.
func newFixtureWithRepo(t *testing.T, wrap func(port.LedgerRepository) port.LedgerRepository) *fixture {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	ctx := context.Background()

	store := storage.NewMemoryStore()
	store.CreateBase(ctx, domain.Base{ID: "alpha", Name: "Alpha"})
	store.CreateBase(ctx, domain.Base{ID: "bravo", Name: "Bravo"})
	store.CreateAsset(ctx, domain.Asset{ID: "rifle", Name: "Rifle", Type: "WEAPON"})

	hash, err := auth.HashPassword("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := []domain.User{
		{ID: "u-admin", Username: "admin", PasswordHash: hash, Role: domain.RoleAdmin},
		{ID: "u-log", Username: "logistics", PasswordHash: hash, Role: domain.RoleLogistics},
		{ID: "u-cmdr", Username: "cmdr", PasswordHash: hash, Role: domain.RoleCommander, BaseID: "alpha"},
	}
	for _, u := range users {
		store.CreateUser(ctx, u)
	}

	authz := service.NewAuthorizer(l)
	var repo port.LedgerRepository = store
	if wrap != nil {
		repo = wrap(store)
	}
	ledger := service.NewLedger(l, repo, store, service.LedgerConfig{CommitRetries: 2, LockTimeout: time.Second})
	refs := service.NewReferenceService(store, authz)
	issuer := auth.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour)

	f := &fixture{
		store:     store,
		auth:      auth.NewService(l, store, refs, issuer, true),
		movements: service.NewMovementService(ledger, authz),
		queries:   service.NewQueryService(ledger, store, authz),
		refs:      refs,
		tokens:    make(map[domain.Role]string),
	}
	for _, u := range users {
		token, err := issuer.Issue(u)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		f.tokens[u.Role] = token
	}
	return f
}

func (f *fixture) logger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// failingRepo passes through to the store except where an error is set.
type failingRepo struct {
	port.LedgerRepository
	commitErr error
	listErr   error
}

func (r *failingRepo) Commit(ctx context.Context, m domain.Movement, check port.StockCheck) ([]domain.StockPosition, error) {
	if r.commitErr != nil {
		return nil, r.commitErr
	}
	return r.LedgerRepository.Commit(ctx, m, check)
}

func (r *failingRepo) ListMovements(ctx context.Context, q domain.MovementQuery) ([]domain.Movement, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.LedgerRepository.ListMovements(ctx, q)
}
