package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/nokoro/statement-tracker/internal/common"
)

// Database wraps the connection pool with the driver it was opened on, so
// queries can be rebound to the driver's placeholder style.
type Database struct {
	*sql.DB
	Driver string
}

// Open connects to the statements database. The DSN scheme picks the driver:
// postgres:// goes through pgx, anything else is treated as a sqlite path
// (optionally prefixed sqlite://).
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, dsn := driverFor(cfg.DSN)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, common.WrapError(err, "open database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "ping database")
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "migrate database")
	}

	logger.Info("repository.db.connected", "driver", driver)
	return &Database{DB: db, Driver: driver}, nil
}

func driverFor(dsn string) (driver, cleaned string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return "sqlite", dsn
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS statements (
	id                   TEXT PRIMARY KEY,
	filename             TEXT NOT NULL,
	file_path            TEXT NOT NULL,
	issuer               TEXT NOT NULL DEFAULT '',
	cardholder_name      TEXT,
	card_last_four       TEXT,
	billing_period_start TEXT,
	billing_period_end   TEXT,
	payment_due_date     TEXT,
	total_amount_due     TEXT,
	extraction_method    TEXT NOT NULL DEFAULT '',
	overall_confidence   REAL NOT NULL DEFAULT 0,
	extraction_steps     TEXT NOT NULL DEFAULT '[]',
	llm_rationale        TEXT NOT NULL DEFAULT '',
	field_rationale      TEXT NOT NULL DEFAULT '{}',
	is_processed         BOOLEAN NOT NULL DEFAULT FALSE,
	has_errors           BOOLEAN NOT NULL DEFAULT FALSE,
	error_message        TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL
)`

// rebind converts ?-style placeholders to the $N form pgx expects. sqlite
// takes ? directly.
func (d *Database) rebind(query string) string {
	if d.Driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
