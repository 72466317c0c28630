package storage

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS bases (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		type VARCHAR(100) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL,
		base_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(64) NOT NULL UNIQUE,
		kind VARCHAR(20) NOT NULL,
		asset_id VARCHAR(64) NOT NULL,
		base_id VARCHAR(64) NOT NULL,
		to_base_id VARCHAR(64) NOT NULL DEFAULT '',
		quantity BIGINT NOT NULL,
		assigned_to VARCHAR(255) NOT NULL DEFAULT '',
		reason VARCHAR(255) NOT NULL DEFAULT '',
		created_by VARCHAR(64) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		INDEX idx_movements_base (base_id, asset_id),
		INDEX idx_movements_to_base (to_base_id, asset_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_positions (
		base_id VARCHAR(64) NOT NULL,
		asset_id VARCHAR(64) NOT NULL,
		on_hand BIGINT NOT NULL DEFAULT 0,
		assigned BIGINT NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0,
		updated_at DATETIME(6) NOT NULL,
		PRIMARY KEY (base_id, asset_id),
		CHECK (on_hand >= 0),
		CHECK (assigned <= on_hand)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS bases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		base_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		base_id TEXT NOT NULL,
		to_base_id TEXT NOT NULL DEFAULT '',
		quantity BIGINT NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_base ON movements (base_id, asset_id)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_to_base ON movements (to_base_id, asset_id)`,
	`CREATE TABLE IF NOT EXISTS stock_positions (
		base_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		on_hand BIGINT NOT NULL DEFAULT 0 CHECK (on_hand >= 0),
		assigned BIGINT NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (base_id, asset_id),
		CHECK (assigned <= on_hand)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS bases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		base_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS movements (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		base_id TEXT NOT NULL,
		to_base_id TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_base ON movements (base_id, asset_id)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_to_base ON movements (to_base_id, asset_id)`,
	`CREATE TABLE IF NOT EXISTS stock_positions (
		base_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		on_hand INTEGER NOT NULL DEFAULT 0 CHECK (on_hand >= 0),
		assigned INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (base_id, asset_id),
		CHECK (assigned <= on_hand)
	)`,
}
