package remote

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*/*.sql
var migrationFiles embed.FS

// RunMigrations executes every embedded migration for the dialect that
// has not run yet, in filename order.
func (db *DB) RunMigrations(ctx context.Context, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, db.Dialect.CreateMigrationsTableQuery()); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	dir := path.Join("migrations", db.Dialect.MigrationsSubdir())

	files, err := fs.Glob(migrationFiles, path.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("listing migration files: %w", err)
	}

	sort.Strings(files)

	for _, file := range files {
		filename := path.Base(file)

		hasRun, err := db.hasMigrationRun(ctx, filename)
		if err != nil {
			return fmt.Errorf("checking migration status: %w", err)
		}

		if hasRun {
			continue
		}

		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading migration file %s: %w", filename, err)
		}

		if err := db.executeMigration(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", filename, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO migrations (filename) VALUES (?)", filename); err != nil {
			return fmt.Errorf("recording migration %s: %w", filename, err)
		}

		logger.Info("migration completed", slog.String("file", filename), slog.String("dialect", db.Dialect.Name()))
	}

	return nil
}

func (db *DB) hasMigrationRun(ctx context.Context, filename string) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE filename = ?", filename).Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

// executeMigration runs each statement separately. Not every driver
// accepts several statements in one Exec (MySQL needs multiStatements).
// Migration files never contain semicolons inside literals.
func (db *DB) executeMigration(ctx context.Context, content string) error {
	for _, stmt := range strings.Split(content, ";") {
		if strings.TrimSpace(stmtWithoutComments(stmt)) == "" {
			continue
		}

		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func stmtWithoutComments(stmt string) string {
	var b strings.Builder

	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	return b.String()
}
