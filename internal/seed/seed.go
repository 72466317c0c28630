package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rl1809/asset-ledger/internal/auth"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/core/service"
	"github.com/rl1809/asset-ledger/internal/port"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// File is the YAML layout of a seed file. Stock entries become purchases with fixed event
// ids, so loading the same file twice changes nothing.
type File struct {
	Bases  []domain.Base  `yaml:"bases"`
	Assets []domain.Asset `yaml:"assets"`
	Users  []User         `yaml:"users"`
	Stock  []Stock        `yaml:"stock"`
}

type User struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	BaseID   string `yaml:"baseId"`
}

type Stock struct {
	ID       string `yaml:"id"`
	BaseID   string `yaml:"baseId"`
	AssetID  string `yaml:"assetId"`
	Quantity int64  `yaml:"quantity"`
}

func Parse(raw []byte) (File, error) {
	var f File
	if err := yaml.UnmarshalStrict(raw, &f); err != nil {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	return f, nil
}

func LoadFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(raw)
}

// Apply creates whatever in f does not exist yet.
func Apply(ctx context.Context, l logrus.FieldLogger, refs port.ReferenceRepository, ledger *service.Ledger, f File) error {
	now := time.Now().UTC()

	for _, b := range f.Bases {
		existing, err := refs.GetBase(ctx, b.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		b.CreatedAt = now
		if err := refs.CreateBase(ctx, b); err != nil {
			return fmt.Errorf("seed base %s: %w", b.ID, err)
		}
		l.WithField("base_id", b.ID).Info("Seeded base.")
	}

	for _, a := range f.Assets {
		existing, err := refs.GetAsset(ctx, a.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		a.CreatedAt = now
		if err := refs.CreateAsset(ctx, a); err != nil {
			return fmt.Errorf("seed asset %s: %w", a.ID, err)
		}
		l.WithField("asset_id", a.ID).Info("Seeded asset.")
	}

	for _, u := range f.Users {
		existing, err := refs.GetUserByUsername(ctx, u.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		role, ok := domain.ParseRole(u.Role)
		if !ok {
			return fmt.Errorf("seed user %s: %w: unknown role %q", u.Username, domain.ErrValidation, u.Role)
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return err
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		err = refs.CreateUser(ctx, domain.User{
			ID:           u.ID,
			Username:     u.Username,
			PasswordHash: hash,
			Role:         role,
			BaseID:       u.BaseID,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		l.WithField("username", u.Username).Info("Seeded user.")
	}

	for _, s := range f.Stock {
		_, err := ledger.Apply(ctx, domain.Purchase{
			ID:        s.ID,
			AssetID:   s.AssetID,
			BaseID:    s.BaseID,
			Quantity:  s.Quantity,
			CreatedBy: "seed",
		}.Movement())
		if err != nil {
			return fmt.Errorf("seed stock %s: %w", s.ID, err)
		}
	}
	return nil
}
