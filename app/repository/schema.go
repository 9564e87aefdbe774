package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS payment_records (
		request_id VARCHAR(64) NOT NULL PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		amount_minor BIGINT NOT NULL,
		currency VARCHAR(8) NOT NULL,
		name VARCHAR(255) NULL,
		description TEXT NULL,
		contact VARCHAR(64) NULL,
		email VARCHAR(255) NULL,
		checkout_url VARCHAR(1024) NULL,
		payment_id VARCHAR(64) NULL,
		order_id VARCHAR(64) NULL,
		method VARCHAR(32) NULL,
		captured BOOLEAN NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NULL,
		last_synced_at DATETIME(6) NULL,
		KEY idx_payment_records_status_updated (status, updated_at)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_audit_log (
		seq BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		event_id VARCHAR(64) NOT NULL,
		source VARCHAR(16) NOT NULL,
		event_kind VARCHAR(64) NOT NULL,
		request_id VARCHAR(64) NULL,
		payment_id VARCHAR(64) NULL,
		outcome VARCHAR(16) NOT NULL,
		signature VARCHAR(128) NOT NULL,
		payload MEDIUMTEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_payment_audit_log_request (request_id)
	)`,
	`CREATE TABLE IF NOT EXISTS unlinked_captures (
		payment_id VARCHAR(64) NOT NULL PRIMARY KEY,
		order_id VARCHAR(64) NULL,
		method VARCHAR(32) NULL,
		captured BOOLEAN NOT NULL,
		email VARCHAR(255) NULL,
		contact VARCHAR(64) NULL,
		amount_minor BIGINT NOT NULL,
		payload MEDIUMTEXT NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS payment_records (
		request_id VARCHAR(64) NOT NULL PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		amount_minor BIGINT NOT NULL,
		currency VARCHAR(8) NOT NULL,
		name VARCHAR(255) NULL,
		description TEXT NULL,
		contact VARCHAR(64) NULL,
		email VARCHAR(255) NULL,
		checkout_url VARCHAR(1024) NULL,
		payment_id VARCHAR(64) NULL,
		order_id VARCHAR(64) NULL,
		method VARCHAR(32) NULL,
		captured BOOLEAN NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NULL,
		last_synced_at DATETIME NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_records_status_updated ON payment_records (status, updated_at)`,
	`CREATE TABLE IF NOT EXISTS payment_audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id VARCHAR(64) NOT NULL,
		source VARCHAR(16) NOT NULL,
		event_kind VARCHAR(64) NOT NULL,
		request_id VARCHAR(64) NULL,
		payment_id VARCHAR(64) NULL,
		outcome VARCHAR(16) NOT NULL,
		signature VARCHAR(128) NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_audit_log_request ON payment_audit_log (request_id)`,
	`CREATE TABLE IF NOT EXISTS unlinked_captures (
		payment_id VARCHAR(64) NOT NULL PRIMARY KEY,
		order_id VARCHAR(64) NULL,
		method VARCHAR(32) NULL,
		captured BOOLEAN NOT NULL,
		email VARCHAR(255) NULL,
		contact VARCHAR(64) NULL,
		amount_minor BIGINT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// Migrate creates the tables used by the SQL repositories. It is safe to run
// repeatedly.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var statements []string
	switch driver {
	case DriverMySQL:
		statements = mysqlSchema
	case DriverSQLite:
		statements = sqliteSchema
	default:
		return fmt.Errorf("unsupported store driver %q", driver)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", driver, err)
		}
	}
	return nil
}
