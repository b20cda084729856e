package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables this service reads and writes. notices is
// owned by the wider application; it is created here only so a fresh
// database is usable.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notices (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		restricted TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS token_urls (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		token CHAR(64) NOT NULL,
		notice_id BIGINT UNSIGNED NULL,
		user_id BIGINT UNSIGNED NULL,
		expiration_date DATETIME NULL,
		valid_forever TINYINT(1) NOT NULL DEFAULT 0,
		documents_notification TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_token_urls_token (token),
		KEY idx_token_urls_email_active (email, valid_forever, expiration_date),
		KEY idx_token_urls_notice (notice_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	// One row per email that ever held a temporary token; the row lock
	// serializes concurrent issuance for the same address.
	`CREATE TABLE IF NOT EXISTS token_url_email_locks (
		email VARCHAR(255) NOT NULL PRIMARY KEY,
		expires_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
