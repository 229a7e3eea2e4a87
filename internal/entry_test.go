package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/datalib/internal/store"
	"github.com/starford/datalib/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Database.DSN = filepath.Join(dir, "datalib.db")
	cfg.Attachments.Path = filepath.Join(dir, "attachments")
	return cfg
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background(), quiet()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestRunMigrate(t *testing.T) {
	cfg := testConfig(t)
	if err := RunMigrate(context.Background(), WithConfig(cfg), quiet()); err != nil {
		t.Fatalf("RunMigrate: %v", err)
	}
	// Second run has nothing to apply.
	if err := RunMigrate(context.Background(), WithConfig(cfg), quiet()); err != nil {
		t.Fatalf("RunMigrate again: %v", err)
	}
}

func TestRunMCP_RequiresUser(t *testing.T) {
	err := RunMCP(context.Background(), WithConfig(testConfig(t)), quiet())
	if err == nil {
		t.Fatal("RunMCP without mcp.user_id should fail")
	}
}

func TestRunImport(t *testing.T) {
	cfg := testConfig(t)
	src := t.TempDir()
	files := map[string]string{
		"faq.md":      "---\ntitle: Returns\ntype: inquiry\n---\nWithin 30 days.",
		"sub/bug.md":  "---\ntype: issue\ntags: [login]\n---\n# Login loop\nClear cookies.",
		"ignored.txt": "not markdown",
	}
	for rel, content := range files {
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	job := ImportJob{Dir: src, UserID: "u1", Project: "Support Docs"}
	report, err := RunImport(context.Background(), job, WithConfig(cfg), quiet())
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if report.Created != 2 {
		t.Errorf("report = %+v, want 2 created", report)
	}

	report, err = RunImport(context.Background(), job, WithConfig(cfg), quiet())
	if err != nil {
		t.Fatalf("RunImport again: %v", err)
	}
	if report.Created != 0 || report.Skipped != 2 {
		t.Errorf("second report = %+v, want 2 skipped", report)
	}
}

func TestRunImport_Validation(t *testing.T) {
	cfg := testConfig(t)
	if _, err := RunImport(context.Background(), ImportJob{Dir: t.TempDir()}, WithConfig(cfg), quiet()); err == nil {
		t.Error("import without user should fail")
	}
	if _, err := RunImport(context.Background(), ImportJob{Dir: "/does/not/exist", UserID: "u1"}, WithConfig(cfg), quiet()); err == nil {
		t.Error("import of a missing dir should fail")
	}
}

func TestResolveProject(t *testing.T) {
	db := testutil.TestDB(t)
	projects := store.NewProjectRepo(db)
	ctx := context.Background()

	def, err := resolveProject(ctx, projects, "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != store.DefaultProjectName {
		t.Errorf("default = %q", def.Name)
	}

	created, err := resolveProject(ctx, projects, "u1", "Help Center")
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{created.ID, "help-center", "Help Center"} {
		p, err := resolveProject(ctx, projects, "u1", ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if p.ID != created.ID {
			t.Errorf("resolve %q = %s, want %s", ref, p.ID, created.ID)
		}
	}

	list, _ := projects.ListByOwner(ctx, "u1")
	if len(list) != 2 {
		t.Errorf("projects = %d, want 2", len(list))
	}
}

func TestReadyHandler(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := readyHandler(db, logger)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ready = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"database":"sqlite"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	db.Close()
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("closed db = %d, want 503", w.Code)
	}
}
