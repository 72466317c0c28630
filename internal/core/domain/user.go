package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleLogistics Role = "LOGISTICS"
	RoleCommander Role = "COMMANDER"
)

// ParseRole accepts any letter case and reports whether the role is known.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleLogistics, RoleCommander:
		return r, true
	}
	return "", false
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	BaseID       string    `json:"baseId,omitempty" db:"base_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Principal is the already-authenticated caller. BaseID is empty for principals that
// operate across bases.
type Principal struct {
	UserID   string
	Username string
	Role     Role
	BaseID   string
}

func (u User) Principal() Principal {
	return Principal{UserID: u.ID, Username: u.Username, Role: u.Role, BaseID: u.BaseID}
}
