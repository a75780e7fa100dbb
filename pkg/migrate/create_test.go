package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateSQLMigrationSlugsName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "Add Exchange-Rate history!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := filepath.Join(dir, "20260502083000_add_exchange_rate_history.sql"); path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
		t.Fatalf("missing goose markers: %s", body)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
	if _, err := createSQLMigration(dir, "dup", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := createSQLMigration(dir, "dup", now); err == nil {
		t.Fatal("expected error for existing migration")
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := createSQLMigration(t.TempDir(), "!!!", time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected filename error")
	}
}

func TestEmbeddedMigrationsMatchSourceTree(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	compiled, err := fs.Glob(Embedded(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) == 0 || len(onDisk) != len(compiled) {
		t.Fatalf("embedded %d migrations, source tree has %d", len(compiled), len(onDisk))
	}
}
