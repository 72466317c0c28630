package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"github.com/rl1809/asset-ledger/internal/port"
)

// ErrOptimisticLock means a position changed between the locked read and the write.
var ErrOptimisticLock = fmt.Errorf("%w: optimistic lock conflict", domain.ErrConflict)

var (
	_ port.LedgerRepository    = (*SQLStore)(nil)
	_ port.ReferenceRepository = (*SQLStore)(nil)
)

const movementColumns = `id, kind, asset_id, base_id, to_base_id, quantity, assigned_to, reason, created_by, created_at`

const positionColumns = `base_id, asset_id, on_hand, assigned, version, updated_at`

// SQLStore persists the ledger in MySQL, PostgreSQL or SQLite. The movement insert, the
// locked position reads and the versioned position updates of one Commit share a transaction.
type SQLStore struct {
	db  *sqlx.DB
	d   dialect
	now func() time.Time
}

// OpenSQLStore connects, tunes the pool for the driver and applies the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.name == DriverSQLite {
		// one writer; in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	s, err := NewSQLStore(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sqlx.DB, driver string) (*SQLStore, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, d: d, now: time.Now}, nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	return sqlx.Rebind(s.d.bindType, query)
}

func (s *SQLStore) Commit(ctx context.Context, m domain.Movement, check port.StockCheck) ([]domain.StockPosition, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", domain.ErrConflict, err)
	}
	defer tx.Rollback()

	// The unique id index serializes concurrent retries of one event.
	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO movements (`+movementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, string(m.Kind), m.AssetID, m.BaseID, m.ToBaseID, m.Quantity,
		m.AssignedTo, m.Reason, m.CreatedBy, m.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert movement: %w", s.d.classify(err))
	}

	now := s.now().UTC()
	keys := domain.SortKeys(m.Keys())
	current := make(map[domain.StockKey]domain.StockPosition, len(keys))
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, s.q(s.d.ensurePosition), k.BaseID, k.AssetID, now); err != nil {
			return nil, fmt.Errorf("ensure position %s: %w", k, s.d.classify(err))
		}
		var p domain.StockPosition
		err := tx.GetContext(ctx, &p, s.q(`
			SELECT `+positionColumns+` FROM stock_positions
			WHERE base_id = ? AND asset_id = ?`+s.d.forUpdate), k.BaseID, k.AssetID)
		if err != nil {
			return nil, fmt.Errorf("lock position %s: %w", k, s.d.classify(err))
		}
		current[k] = p
	}

	if check != nil {
		if err := check(current); err != nil {
			return nil, err
		}
	}
	next, err := domain.ApplyMovement(current, m, now)
	if err != nil {
		return nil, err
	}

	out := make([]domain.StockPosition, 0, len(keys))
	for _, k := range keys {
		p := next[k]
		result, err := tx.ExecContext(ctx, s.q(`
			UPDATE stock_positions
			SET on_hand = ?, assigned = ?, version = ?, updated_at = ?
			WHERE base_id = ? AND asset_id = ? AND version = ?`),
			p.OnHand, p.Assigned, p.Version, p.UpdatedAt,
			k.BaseID, k.AssetID, current[k].Version,
		)
		if err != nil {
			return nil, fmt.Errorf("update position %s: %w", k, s.d.classify(err))
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return nil, ErrOptimisticLock
		}
		out = append(out, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", domain.ErrConflict, err)
	}
	return out, nil
}

func (s *SQLStore) GetMovement(ctx context.Context, id string) (*domain.Movement, error) {
	var m domain.Movement
	err := s.db.GetContext(ctx, &m, s.q(`SELECT `+movementColumns+` FROM movements WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query movement: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *SQLStore) ListMovements(ctx context.Context, q domain.MovementQuery) ([]domain.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE 1 = 1`
	var args []interface{}
	if q.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(q.Kind))
	}
	if q.AssetID != "" {
		query += ` AND asset_id = ?`
		args = append(args, q.AssetID)
	}
	if q.BaseID != "" {
		query += ` AND (base_id = ? OR to_base_id = ?)`
		args = append(args, q.BaseID, q.BaseID)
	}
	if q.FromBaseID != "" {
		query += ` AND kind = ? AND base_id = ?`
		args = append(args, string(domain.KindTransfer), q.FromBaseID)
	}
	if q.ToBaseID != "" {
		query += ` AND to_base_id = ?`
		args = append(args, q.ToBaseID)
	}
	if s.d.timeFilter {
		if !q.Start.IsZero() {
			query += ` AND created_at >= ?`
			args = append(args, q.Start.UTC())
		}
		if !q.End.IsZero() {
			query += ` AND created_at < ?`
			args = append(args, q.End.UTC())
		}
	}
	query += ` ORDER BY seq`

	var rows []domain.Movement
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	out := make([]domain.Movement, 0, len(rows))
	for _, m := range rows {
		m.CreatedAt = m.CreatedAt.UTC()
		if q.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *SQLStore) ListPositions(ctx context.Context, baseID string) ([]domain.StockPosition, error) {
	query := `SELECT ` + positionColumns + ` FROM stock_positions`
	var args []interface{}
	if baseID != "" {
		query += ` WHERE base_id = ?`
		args = append(args, baseID)
	}
	query += ` ORDER BY base_id, asset_id`

	out := make([]domain.StockPosition, 0)
	if err := s.db.SelectContext(ctx, &out, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	for i := range out {
		out[i].UpdatedAt = out[i].UpdatedAt.UTC()
	}
	return out, nil
}

func (s *SQLStore) GetBase(ctx context.Context, id string) (*domain.Base, error) {
	var b domain.Base
	err := s.db.GetContext(ctx, &b, s.q(`SELECT id, name, created_at FROM bases WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query base: %w", err)
	}
	return &b, nil
}

func (s *SQLStore) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	var a domain.Asset
	err := s.db.GetContext(ctx, &a, s.q(`SELECT id, name, type, created_at FROM assets WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query asset: %w", err)
	}
	return &a, nil
}

const userColumns = `id, username, password_hash, role, base_id, created_at`

func (s *SQLStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?)`, username)
}

func (s *SQLStore) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, s.q(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *SQLStore) ListBases(ctx context.Context) ([]domain.Base, error) {
	out := make([]domain.Base, 0)
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name, created_at FROM bases ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("query bases: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	out := make([]domain.Asset, 0)
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name, type, created_at FROM assets ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0)
	if err := s.db.SelectContext(ctx, &out, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return out, nil
}

func (s *SQLStore) CreateBase(ctx context.Context, b domain.Base) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO bases (id, name, created_at) VALUES (?, ?, ?)`),
		b.ID, b.Name, b.CreatedAt.UTC())
	return s.insertError("base", b.ID, err)
}

func (s *SQLStore) CreateAsset(ctx context.Context, a domain.Asset) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO assets (id, name, type, created_at) VALUES (?, ?, ?, ?)`),
		a.ID, a.Name, a.Type, a.CreatedAt.UTC())
	return s.insertError("asset", a.ID, err)
}

func (s *SQLStore) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.BaseID, u.CreatedAt.UTC())
	return s.insertError("user", u.Username, err)
}

func (s *SQLStore) insertError(entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if s.d.isDuplicate(err) {
		return fmt.Errorf("%w: %s %s already exists", domain.ErrValidation, entity, id)
	}
	return fmt.Errorf("insert %s: %w", entity, err)
}

func (s *SQLStore) Counts(ctx context.Context) (domain.Overview, error) {
	var o domain.Overview
	counts := []struct {
		table string
		dest  *int
	}{
		{"bases", &o.TotalBases},
		{"assets", &o.TotalAssets},
		{"users", &o.TotalUsers},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, `SELECT COUNT(*) FROM `+c.table); err != nil {
			return domain.Overview{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return o, nil
}
