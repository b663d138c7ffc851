package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
)

// Migrate creates the schema for db's driver. Every statement is idempotent, so running
// it against an up-to-date database is a no-op.
func Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	stmts, err := SchemaStatements(db.DriverName())
	if err != nil {
		return 0, err
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}
	log.Printf("migrations: applied %d schema statements (%s)", len(stmts), db.DriverName())
	return len(stmts), nil
}

// SchemaStatements returns the DDL for driver. Deleting a ticket cascades to its
// messages, internal comments and attachments.
func SchemaStatements(driver string) ([]string, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	switch name {
	case DriverPostgres:
		return postgresSchema, nil
	case DriverMySQL:
		return mysqlSchema, nil
	default:
		return sqliteSchema, nil
	}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		mobile VARCHAR(20) NOT NULL UNIQUE,
		email VARCHAR(254) NULL,
		first_name VARCHAR(150) NOT NULL DEFAULT '',
		last_name VARCHAR(150) NOT NULL DEFAULT '',
		password_hash VARCHAR(128) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
		date_joined TIMESTAMPTZ NOT NULL,
		last_login TIMESTAMPTZ NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_key ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS user_groups (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		group_name VARCHAR(32) NOT NULL,
		PRIMARY KEY (user_id, group_name)
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		agent_id BIGINT NULL REFERENCES users(id) ON DELETE SET NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
		priority VARCHAR(20) NOT NULL DEFAULT 'MEDIUM',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_customer_idx ON tickets (customer_id)`,
	`CREATE INDEX IF NOT EXISTS tickets_agent_status_idx ON tickets (agent_id, status)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		ticket_id BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_ticket_idx ON messages (ticket_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS internal_comments (
		id BIGSERIAL PRIMARY KEY,
		ticket_id BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS internal_comments_ticket_idx ON internal_comments (ticket_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGSERIAL PRIMARY KEY,
		ticket_id BIGINT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		message_id BIGINT NULL REFERENCES messages(id) ON DELETE CASCADE,
		storage_path VARCHAR(512) NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		content_type VARCHAR(255) NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		description VARCHAR(255) NOT NULL DEFAULT '',
		uploaded_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		uploaded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS attachments_ticket_idx ON attachments (ticket_id)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes live in the table definitions.
// The default utf8mb4 collation already compares email case-insensitively.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		mobile VARCHAR(20) NOT NULL,
		email VARCHAR(254) NULL,
		first_name VARCHAR(150) NOT NULL DEFAULT '',
		last_name VARCHAR(150) NOT NULL DEFAULT '',
		password_hash VARCHAR(128) NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		is_staff TINYINT(1) NOT NULL DEFAULT 0,
		is_superuser TINYINT(1) NOT NULL DEFAULT 0,
		date_joined DATETIME(6) NOT NULL,
		last_login DATETIME(6) NULL,
		UNIQUE KEY users_mobile_key (mobile),
		UNIQUE KEY users_email_key (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_groups (
		user_id BIGINT UNSIGNED NOT NULL,
		group_name VARCHAR(32) NOT NULL,
		PRIMARY KEY (user_id, group_name),
		CONSTRAINT user_groups_user_fk FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		customer_id BIGINT UNSIGNED NOT NULL,
		agent_id BIGINT UNSIGNED NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
		priority VARCHAR(20) NOT NULL DEFAULT 'MEDIUM',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY tickets_customer_idx (customer_id),
		KEY tickets_agent_status_idx (agent_id, status),
		CONSTRAINT tickets_customer_fk FOREIGN KEY (customer_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT tickets_agent_fk FOREIGN KEY (agent_id) REFERENCES users(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		ticket_id BIGINT UNSIGNED NOT NULL,
		sender_id BIGINT UNSIGNED NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY messages_ticket_idx (ticket_id, created_at),
		CONSTRAINT messages_ticket_fk FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE,
		CONSTRAINT messages_sender_fk FOREIGN KEY (sender_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS internal_comments (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		ticket_id BIGINT UNSIGNED NOT NULL,
		author_id BIGINT UNSIGNED NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY internal_comments_ticket_idx (ticket_id, created_at),
		CONSTRAINT internal_comments_ticket_fk FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE,
		CONSTRAINT internal_comments_author_fk FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		ticket_id BIGINT UNSIGNED NOT NULL,
		message_id BIGINT UNSIGNED NULL,
		storage_path VARCHAR(512) NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		content_type VARCHAR(255) NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		description VARCHAR(255) NOT NULL DEFAULT '',
		uploaded_by BIGINT UNSIGNED NOT NULL,
		uploaded_at DATETIME(6) NOT NULL,
		KEY attachments_ticket_idx (ticket_id),
		CONSTRAINT attachments_ticket_fk FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE,
		CONSTRAINT attachments_message_fk FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
		CONSTRAINT attachments_uploader_fk FOREIGN KEY (uploaded_by) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mobile TEXT NOT NULL UNIQUE,
		email TEXT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		is_staff BOOLEAN NOT NULL DEFAULT 0,
		is_superuser BOOLEAN NOT NULL DEFAULT 0,
		date_joined DATETIME NOT NULL,
		last_login DATETIME NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_key ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS user_groups (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		group_name TEXT NOT NULL,
		PRIMARY KEY (user_id, group_name)
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		agent_id INTEGER NULL REFERENCES users(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		priority TEXT NOT NULL DEFAULT 'MEDIUM',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_customer_idx ON tickets (customer_id)`,
	`CREATE INDEX IF NOT EXISTS tickets_agent_status_idx ON tickets (agent_id, status)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_ticket_idx ON messages (ticket_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS internal_comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS internal_comments_ticket_idx ON internal_comments (ticket_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		message_id INTEGER NULL REFERENCES messages(id) ON DELETE CASCADE,
		storage_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		uploaded_by INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		uploaded_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS attachments_ticket_idx ON attachments (ticket_id)`,
}
