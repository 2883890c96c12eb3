package database

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL DEFAULT '',
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'active',
		delete_requested_at DATETIME NULL,
		delete_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_users_delete (status, delete_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS plans (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		slug VARCHAR(64) NOT NULL,
		name VARCHAR(128) NOT NULL,
		daily_limit INT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_plans_slug (slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		plan_id BIGINT NOT NULL,
		status VARCHAR(32) NOT NULL,
		current_period_start DATETIME NULL,
		current_period_end DATETIME NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX idx_subscriptions_user (user_id, status),
		CONSTRAINT fk_subscriptions_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_subscriptions_plan FOREIGN KEY (plan_id) REFERENCES plans(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tools (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		slug VARCHAR(64) NOT NULL,
		category VARCHAR(64) NOT NULL,
		weight INT NOT NULL DEFAULT 1,
		is_premium BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_tools_slug (slug)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		scope_key VARCHAR(128) NOT NULL,
		user_id VARCHAR(64) NULL,
		anon_key VARCHAR(128) NULL,
		tool VARCHAR(64) NOT NULL,
		period_start DATETIME NOT NULL,
		period_end DATETIME NOT NULL,
		used INT NOT NULL DEFAULT 0,
		limit_value INT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_usage_window (scope_key, tool, period_start),
		INDEX idx_usage_period_end (period_end),
		CONSTRAINT fk_usage_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS file_records (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(64) NULL,
		tool VARCHAR(64) NOT NULL,
		filename VARCHAR(255) NOT NULL,
		storage_path VARCHAR(512) NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_file_records_filename (filename),
		CONSTRAINT fk_file_records_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		email VARCHAR(255) NOT NULL DEFAULT '',
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'active',
		delete_requested_at TIMESTAMPTZ NULL,
		delete_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_delete ON users (status, delete_at)`,
	`CREATE TABLE IF NOT EXISTS plans (
		id BIGSERIAL PRIMARY KEY,
		slug VARCHAR(64) NOT NULL UNIQUE,
		name VARCHAR(128) NOT NULL,
		daily_limit INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		plan_id BIGINT NOT NULL REFERENCES plans(id),
		status VARCHAR(32) NOT NULL,
		current_period_start TIMESTAMPTZ NULL,
		current_period_end TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions (user_id, status)`,
	`CREATE TABLE IF NOT EXISTS tools (
		id BIGSERIAL PRIMARY KEY,
		slug VARCHAR(64) NOT NULL UNIQUE,
		category VARCHAR(64) NOT NULL,
		weight INT NOT NULL DEFAULT 1,
		is_premium BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id BIGSERIAL PRIMARY KEY,
		scope_key VARCHAR(128) NOT NULL,
		user_id VARCHAR(64) NULL REFERENCES users(id) ON DELETE CASCADE,
		anon_key VARCHAR(128) NULL,
		tool VARCHAR(64) NOT NULL,
		period_start TIMESTAMPTZ NOT NULL,
		period_end TIMESTAMPTZ NOT NULL,
		used INT NOT NULL DEFAULT 0,
		limit_value INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_usage_window UNIQUE (scope_key, tool, period_start),
		CONSTRAINT ck_usage_scope CHECK ((user_id IS NULL) <> (anon_key IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_period_end ON usage_records (period_end)`,
	`CREATE TABLE IF NOT EXISTS file_records (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(64) NULL REFERENCES users(id) ON DELETE CASCADE,
		tool VARCHAR(64) NOT NULL,
		filename VARCHAR(255) NOT NULL UNIQUE,
		storage_path VARCHAR(512) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Schema returns the DDL statements for driver.
func Schema(driver string) []string {
	if driver == DriverPostgres {
		return postgresSchema
	}
	return mysqlSchema
}

// Migrate creates any missing tables. Statements are idempotent.
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range Schema(db.Driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
