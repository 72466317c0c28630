package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rl1809/asset-ledger/internal/core/domain"
)

type Claims struct {
	UserID   string      `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	BaseID   string      `json:"baseId,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *TokenIssuer) Issue(u domain.User) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		BaseID:   u.BaseID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse verifies a token and returns the principal it carries.
func (i *TokenIssuer) Parse(tokenStr string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	role, ok := domain.ParseRole(string(claims.Role))
	if !ok {
		return domain.Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthenticated, claims.Role)
	}

	return domain.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     role,
		BaseID:   claims.BaseID,
	}, nil
}
