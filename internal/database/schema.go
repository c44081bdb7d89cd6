package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table idempotently.  Schedules cascade with their
// booking; total_amount is generated so it can never drift from its
// components.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('REQUESTER','APPROVER','BILLER','FINANCE','ADMIN') NOT NULL DEFAULT 'REQUESTER',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS facilities (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		location   VARCHAR(255) NOT NULL DEFAULT '',
		capacity   INT UNSIGNED NOT NULL,
		price      DECIMAL(12,2) NOT NULL DEFAULT 0,
		status     ENUM('available','unavailable') NOT NULL DEFAULT 'available',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS facility_inclusions (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		facility_id BIGINT UNSIGNED NOT NULL,
		kind        ENUM('room','equipment') NOT NULL,
		name        VARCHAR(255) NOT NULL,
		price       DECIMAL(12,2) NOT NULL DEFAULT 0,
		position    INT UNSIGNED NOT NULL DEFAULT 0,
		KEY idx_inclusions_facility (facility_id, position),
		CONSTRAINT fk_inclusion_facility FOREIGN KEY (facility_id) REFERENCES facilities(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		requester_id BIGINT UNSIGNED NOT NULL,
		facility_id  BIGINT UNSIGNED NOT NULL,
		organization VARCHAR(255) NOT NULL,
		purpose      TEXT NOT NULL,
		status       ENUM('REQUESTED','APPROVED','BILLED','PAID','REJECTED','CANCELLED') NOT NULL,
		reason       VARCHAR(1024) NULL,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL,
		KEY idx_bookings_requester (requester_id),
		KEY idx_bookings_facility_status (facility_id, status),
		CONSTRAINT fk_booking_facility FOREIGN KEY (facility_id) REFERENCES facilities(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS schedules (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id  BIGINT UNSIGNED NOT NULL,
		facility_id BIGINT UNSIGNED NOT NULL,
		date        DATE NOT NULL,
		start_time  TIME NOT NULL,
		end_time    TIME NOT NULL,
		status      ENUM('pending','confirmed','cancelled') NOT NULL DEFAULT 'pending',
		KEY idx_schedules_slot (facility_id, date, status),
		KEY idx_schedules_booking (booking_id),
		CONSTRAINT chk_schedule_interval CHECK (start_time < end_time),
		CONSTRAINT fk_schedule_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE,
		CONSTRAINT fk_schedule_facility FOREIGN KEY (facility_id) REFERENCES facilities(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS billings (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id    BIGINT UNSIGNED NOT NULL,
		issuer_id     BIGINT UNSIGNED NOT NULL,
		facility_fee  DECIMAL(12,2) NOT NULL,
		equipment_fee DECIMAL(12,2) NOT NULL,
		total_amount  DECIMAL(12,2) AS (facility_fee + equipment_fee) STORED,
		status        ENUM('draft','sent','paid') NOT NULL DEFAULT 'draft',
		voided_at     DATETIME NULL,
		created_at    DATETIME NOT NULL,
		KEY idx_billings_booking (booking_id, voided_at),
		CONSTRAINT fk_billing_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
