package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"qualitrack/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var gooseMigrations embed.FS

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS ncs (
		id TEXT PRIMARY KEY,
		reg_no TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMP NOT NULL,
		identified_by TEXT NOT NULL,
		area TEXT NOT NULL,
		classification TEXT NOT NULL,
		nc_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		version INTEGER NOT NULL DEFAULT 1
	);`,
	`CREATE TABLE IF NOT EXISTS nc_reg_counters (
		year INTEGER PRIMARY KEY,
		seq INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS nc_analyses (
		id TEXT PRIMARY KEY,
		nc_id TEXT NOT NULL,
		whys_json TEXT NOT NULL DEFAULT '[]',
		responsible TEXT NOT NULL,
		analyzed_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(nc_id) REFERENCES ncs(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS nc_actions (
		id TEXT PRIMARY KEY,
		nc_id TEXT NOT NULL,
		description TEXT NOT NULL,
		responsible TEXT NOT NULL,
		due_date TIMESTAMP NOT NULL,
		resources TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		evidence TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(nc_id) REFERENCES ncs(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS nc_verifications (
		id TEXT PRIMARY KEY,
		nc_id TEXT NOT NULL,
		verified_at TIMESTAMP NOT NULL,
		responsible TEXT NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0,
		observations TEXT NOT NULL DEFAULT '',
		final_status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(nc_id) REFERENCES ncs(id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_ncs_status ON ncs(status);`,
	`CREATE INDEX IF NOT EXISTS idx_nc_analyses_nc ON nc_analyses(nc_id);`,
	`CREATE INDEX IF NOT EXISTS idx_nc_actions_nc ON nc_actions(nc_id);`,
	`CREATE INDEX IF NOT EXISTS idx_nc_verifications_nc ON nc_verifications(nc_id);`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	isPG, err := isPostgresDB(ctx, db)
	if err != nil {
		return err
	}
	if !isPG {
		return applySQLiteMigrations(ctx, db, logger)
	}
	return applyGooseMigrations(ctx, db, logger)
}

func isPostgresDB(ctx context.Context, db *sql.DB) (bool, error) {
	var sqliteVersion string
	if err := db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&sqliteVersion); err == nil {
		return false, nil
	}
	var version string
	if err := db.QueryRowContext(ctx, `SELECT version()`).Scan(&version); err != nil {
		return false, fmt.Errorf("detect database: %w", err)
	}
	return true, nil
}

func applySQLiteMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if logger != nil {
		logger.Printf("applying sqlite migrations")
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	if logger != nil {
		logger.Printf("sqlite migrations applied")
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	goose.SetBaseFS(gooseMigrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type gooseLogger struct {
	logger *utils.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.logger.Printf(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.logger.Errorf(format, v...)
}
