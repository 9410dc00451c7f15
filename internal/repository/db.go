package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN         string // postgres:// DSN or a sqlite path (":memory:" works)
	DialTimeout time.Duration
}

// DB wraps database/sql with the dialect picked from the DSN.
type DB struct {
	*sql.DB
	dialect string // "postgres" | "sqlite"
	logger  *slog.Logger
}

// Open connects using pgx for postgres DSNs and the pure-Go sqlite
// driver for everything else.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, dialect := "sqlite", "sqlite"
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver, dialect = "pgx", "postgres"
	}

	logger.Info("connecting to database", "dialect", dialect)
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		logger.Error("failed to ping database", "error", err)
		return nil, err
	}

	db := &DB{DB: sqldb, dialect: dialect, logger: logger}
	if err := db.migrate(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("successfully connected to database")
	return db, nil
}

// HealthCheck pings the database, honoring the timeout.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}

// Close closes the database connection gracefully.
func (db *DB) Close() {
	db.logger.Info("closing database connection")
	if err := db.DB.Close(); err != nil {
		db.logger.Error("failed to close database", "error", err)
	}
}

func (db *DB) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL DEFAULT '',
		formula TEXT NOT NULL,
		status TEXT NOT NULL,
		total_billed TEXT NOT NULL,
		total_reimbursed TEXT NOT NULL,
		total_remaining TEXT NOT NULL,
		line_errors INTEGER NOT NULL DEFAULT 0,
		client_info TEXT,
		ocr_method TEXT NOT NULL DEFAULT '',
		ocr_confidence REAL NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		position INTEGER NOT NULL,
		animal_uid TEXT NOT NULL DEFAULT '',
		raw_label TEXT NOT NULL,
		code TEXT NOT NULL,
		is_accident INTEGER NOT NULL DEFAULT 0,
		amount_billed TEXT NOT NULL,
		rate_applied REAL NOT NULL,
		amount_reimbursed TEXT NOT NULL,
		amount_remaining TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice ON invoice_lines(invoice_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at);
	`
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
