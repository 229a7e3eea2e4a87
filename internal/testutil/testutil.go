// Package testutil provides shared test helpers for setting up databases,
// projects and attachment directories.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/datalib/internal/attachments"
	"github.com/starford/datalib/internal/models"
	"github.com/starford/datalib/internal/store"
)

// TestDB creates a temporary migrated SQLite database that is automatically
// cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "datalib-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, DSN: dbFile.Name()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProject creates a project named name owned by userID.
func TestProject(t *testing.T, db *store.DB, userID, name string) *models.Project {
	t.Helper()
	p, err := store.NewProjectRepo(db).Create(context.Background(), userID, models.ProjectInsert{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// TestAttachments creates a temporary filesystem attachment store.
func TestAttachments(t *testing.T) (string, *attachments.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := attachments.NewFS(dir, "/attachments")
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
