package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
	"github.com/rl1809/asset-ledger/internal/core/domain"
	"modernc.org/sqlite"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// dialect holds what differs between the supported databases. Queries are written with '?'
// placeholders and rebound per dialect.
type dialect struct {
	name       string
	driverName string
	bindType   int
	schema     []string
	forUpdate  string
	// ensurePosition creates an empty position row if none exists.
	ensurePosition string
	// timeFilter is false where timestamps do not compare correctly in SQL.
	timeFilter bool
	isDuplicate func(error) bool
	isTransient func(error) bool
}

var dialects = map[string]dialect{
	DriverMySQL: {
		name:       DriverMySQL,
		driverName: "mysql",
		bindType:   sqlx.QUESTION,
		schema:     mysqlSchema,
		forUpdate:  " FOR UPDATE",
		ensurePosition: `INSERT IGNORE INTO stock_positions (base_id, asset_id, on_hand, assigned, version, updated_at)
			VALUES (?, ?, 0, 0, 0, ?)`,
		timeFilter:  true,
		isDuplicate: mysqlErrorIn(1062),
		isTransient: mysqlErrorIn(1205, 1213),
	},
	DriverPostgres: {
		name:       DriverPostgres,
		driverName: "pgx",
		bindType:   sqlx.DOLLAR,
		schema:     postgresSchema,
		forUpdate:  " FOR UPDATE",
		ensurePosition: `INSERT INTO stock_positions (base_id, asset_id, on_hand, assigned, version, updated_at)
			VALUES (?, ?, 0, 0, 0, ?) ON CONFLICT (base_id, asset_id) DO NOTHING`,
		timeFilter:  true,
		isDuplicate: pgErrorIn("23505"),
		isTransient: pgErrorIn("40001", "40P01", "55P03"),
	},
	DriverSQLite: {
		name:       DriverSQLite,
		driverName: "sqlite",
		bindType:   sqlx.QUESTION,
		schema:     sqliteSchema,
		forUpdate:  "",
		ensurePosition: `INSERT INTO stock_positions (base_id, asset_id, on_hand, assigned, version, updated_at)
			VALUES (?, ?, 0, 0, 0, ?) ON CONFLICT (base_id, asset_id) DO NOTHING`,
		timeFilter:  false,
		isDuplicate: sqliteErrorIn(sqliteConstraintPrimaryKey, sqliteConstraintUnique),
		isTransient: sqliteErrorIn(sqliteBusy, sqliteLocked),
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
	return d, nil
}

func mysqlErrorIn(numbers ...uint16) func(error) bool {
	return func(err error) bool {
		var me *mysql.MySQLError
		if !errors.As(err, &me) {
			return false
		}
		for _, n := range numbers {
			if me.Number == n {
				return true
			}
		}
		return false
	}
}

func pgErrorIn(codes ...string) func(error) bool {
	return func(err error) bool {
		var pe *pgconn.PgError
		if !errors.As(err, &pe) {
			return false
		}
		for _, c := range codes {
			if pe.Code == c {
				return true
			}
		}
		return false
	}
}

const (
	sqliteBusy                 = 5
	sqliteLocked               = 6
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

func sqliteErrorIn(codes ...int) func(error) bool {
	return func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		for _, c := range codes {
			// primary result codes match extended codes in their low byte
			if se.Code() == c || (c < 256 && se.Code()&0xff == c) {
				return true
			}
		}
		return false
	}
}

// classify turns driver errors into ledger errors. Unknown errors pass through unchanged.
func (d dialect) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case d.isDuplicate(err):
		return fmt.Errorf("%w: %w", domain.ErrDuplicateEvent, err)
	case d.isTransient(err):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}
