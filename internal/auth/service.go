package auth

import (
	"context"
	"fmt"

	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
)

type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Service handles login and self sign-up.
type Service struct {
	l           logrus.FieldLogger
	refs        port.ReferenceRepository
	users       *service.ReferenceService
	tokens      *TokenIssuer
	allowSignup bool
}

func NewService(l logrus.FieldLogger, refs port.ReferenceRepository, users *service.ReferenceService, tokens *TokenIssuer, allowSignup bool) *Service {
	return &Service{l: l, refs: refs, users: users, tokens: tokens, allowSignup: allowSignup}
}

func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Login fails with the same error for an unknown user and a wrong password.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.refs.GetUserByUsername(ctx, username)
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !CheckPassword(u.PasswordHash, password) {
		s.l.WithField("username", username).Info("Login rejected.")
		return Session{}, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthenticated)
	}

	token, err := s.tokens.Issue(*u)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: *u}, nil
}

type Registration struct {
	Username string
	Password string
	Role     domain.Role
	BaseID   string
}

// Register creates an account without a signed-in caller. Disabled unless sign-up is allowed,
// and never grants ADMIN.
func (s *Service) Register(ctx context.Context, r Registration) (Session, error) {
	if !s.allowSignup {
		return Session{}, fmt.Errorf("%w: sign-up is disabled", domain.ErrForbidden)
	}
	if r.Role == "" {
		r.Role = domain.RoleCommander
	}
	if role, ok := domain.ParseRole(string(r.Role)); ok && role == domain.RoleAdmin {
		return Session{}, fmt.Errorf("%w: cannot self-register as %s", domain.ErrForbidden, domain.RoleAdmin)
	}

	u, err := s.NewUser(r)
	if err != nil {
		return Session{}, err
	}
	u, err = s.users.Register(ctx, u)
	if err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: u}, nil
}

// NewUser hashes the password of a registration into an unsaved user.
func (s *Service) NewUser(r Registration) (domain.User, error) {
	if len(r.Password) < 6 {
		return domain.User{}, fmt.Errorf("%w: password must be at least 6 characters", domain.ErrValidation)
	}
	hash, err := HashPassword(r.Password)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{Username: r.Username, PasswordHash: hash, Role: r.Role, BaseID: r.BaseID}, nil
}
