package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	connectors "github.com/healthsync/go-connectors"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_DefaultsCoverBothDialects(t *testing.T) {
	var calls []string
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, sourceLabel string, _ fs.FS) error {
		if sourceLabel != "go-connectors" {
			t.Fatalf("expected default source label, got %q", sourceLabel)
		}
		calls = append(calls, dialect)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected both dialect registrations, got %v", calls)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("expected both filesystems in registration, got %d", len(reg.Filesystems))
	}
}

func TestConnectorSchemaMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := connectors.GetCoreMigrationsFS()
	names := []string{
		"00001_connectors_tokens",
		"00002_connectors_sync_cursors",
		"00003_connectors_events",
		"00004_connectors_rate_limit_states",
	}
	for _, name := range names {
		paths := []string{
			"data/sql/migrations/" + name + ".up.sql",
			"data/sql/migrations/" + name + ".down.sql",
			"data/sql/migrations/sqlite/" + name + ".up.sql",
			"data/sql/migrations/sqlite/" + name + ".down.sql",
		}
		for _, migrationPath := range paths {
			content, err := fs.ReadFile(root, migrationPath)
			if err != nil {
				t.Fatalf("read migration %s: %v", migrationPath, err)
			}
			if strings.TrimSpace(string(content)) == "" {
				t.Fatalf("expected migration %s to have SQL content", migrationPath)
			}
		}
	}
}

func TestSQLiteConnectorSchemaMigrations_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-connector-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := connectors.GetCoreMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}

	ups := []string{
		"00001_connectors_tokens.up.sql",
		"00002_connectors_sync_cursors.up.sql",
		"00003_connectors_events.up.sql",
		"00004_connectors_rate_limit_states.up.sql",
	}
	for _, migration := range ups {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	insertToken := `
		INSERT INTO connector_tokens (
			id,
			vendor,
			user_id,
			access_token,
			refresh_token,
			token_type,
			scopes,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertToken,
		"tok-1", "garmin", "usr_1", "at-1", "rt-1", "bearer", "[]",
		"2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert token row: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertToken,
		"tok-2", "garmin", "usr_1", "at-2", "rt-2", "bearer", "[]",
		"2026-02-01T00:00:00Z", "2026-02-01T00:00:00Z",
	); err == nil {
		t.Fatalf("expected vendor and user uniqueness violation")
	}

	insertState := `
		INSERT INTO connector_rate_limit_states (
			id, vendor, limit_total, remaining, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(
		context.Background(),
		insertState,
		"state-1", "whoop", 100, 99, "{}", "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z",
	); err != nil {
		t.Fatalf("insert rate-limit state row: %v", err)
	}
	if _, err := db.ExecContext(
		context.Background(),
		insertState,
		"state-2", "whoop", 100, 98, "{}", "2026-02-01T00:00:00Z", "2026-02-01T00:00:00Z",
	); err == nil {
		t.Fatalf("expected per-vendor state uniqueness violation")
	}

	downs := []string{
		"00004_connectors_rate_limit_states.down.sql",
		"00003_connectors_events.down.sql",
		"00002_connectors_sync_cursors.down.sql",
		"00001_connectors_tokens.down.sql",
	}
	for _, migration := range downs {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply rollback %s: %v", migration, err)
		}
	}

	var remaining int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name LIKE 'connector_%'`,
	).Scan(&remaining); err != nil {
		t.Fatalf("query sqlite_master after rollback: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected all connector tables dropped after rollback, got %d", remaining)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
