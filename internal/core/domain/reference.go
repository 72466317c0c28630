package domain

import "time"

type Base struct {
	ID        string    `json:"id" db:"id" yaml:"id"`
	Name      string    `json:"name" db:"name" yaml:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" yaml:"-"`
}

// Asset is a global catalog entry. Type is a free-text category.
type Asset struct {
	ID        string    `json:"id" db:"id" yaml:"id"`
	Name      string    `json:"name" db:"name" yaml:"name"`
	Type      string    `json:"type" db:"type" yaml:"type"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" yaml:"-"`
}

type Overview struct {
	TotalBases  int `json:"totalBases"`
	TotalAssets int `json:"totalAssets"`
	TotalUsers  int `json:"totalUsers"`
}
