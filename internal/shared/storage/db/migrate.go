package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// RunMigrations applies the embedded SQL migrations for dialect via goose.
// If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB, dialect Dialect) error {
	if database == nil {
		return nil
	}
	gooseDialect, dir := migrationTarget(dialect)
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, database, dir)
}

func migrationTarget(dialect Dialect) (string, string) {
	if dialect == DialectSQLite {
		return "sqlite3", "migrations/sqlite"
	}
	return "postgres", "migrations/postgres"
}
