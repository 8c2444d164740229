package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql %s/%s: %w", cfg.Addr, name, err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql %s/%s: %w", cfg.Addr, name, err)
	}
	return db, nil
}

// schema creates the two tables the service needs.  The unique key on
// payments.transaction_id is what makes payment reconciliation safe
// against concurrent confirmations of the same checkout session.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS parcels (
		id               CHAR(36)      NOT NULL,
		sender_email     VARCHAR(255)  NOT NULL,
		parcel_name      VARCHAR(255)  NOT NULL,
		cost             DECIMAL(12,2) NOT NULL,
		parcel_type      VARCHAR(32)   NOT NULL DEFAULT '',
		parcel_weight    DECIMAL(10,3) NOT NULL DEFAULT 0,
		sender_name      VARCHAR(255)  NOT NULL DEFAULT '',
		receiver_name    VARCHAR(255)  NOT NULL DEFAULT '',
		receiver_address VARCHAR(512)  NOT NULL DEFAULT '',
		receiver_phone   VARCHAR(32)   NOT NULL DEFAULT '',
		payment_status   VARCHAR(16)   NULL,
		tracking_id      VARCHAR(32)   NULL,
		created_at       DATETIME(3)   NOT NULL,
		PRIMARY KEY (id),
		KEY idx_parcels_sender_created (sender_email, created_at),
		KEY idx_parcels_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             CHAR(36)      NOT NULL,
		amount         DECIMAL(12,2) NOT NULL,
		currency       VARCHAR(8)    NOT NULL,
		customer_email VARCHAR(255)  NOT NULL,
		parcel_id      CHAR(36)      NOT NULL,
		parcel_name    VARCHAR(255)  NOT NULL,
		transaction_id VARCHAR(255)  NOT NULL,
		payment_status VARCHAR(16)   NOT NULL,
		paid_at        DATETIME(3)   NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_payments_transaction_id (transaction_id),
		KEY idx_payments_customer_paid (customer_email, paid_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  Every statement is idempotent so it runs
// on each startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
