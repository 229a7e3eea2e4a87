package attachments

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/datalib/internal/apperr"
)

func tempFS(t *testing.T) (string, *FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, "/attachments/")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return dir, fs
}

func TestFS_PutOpenDelete(t *testing.T) {
	dir, fs := tempFS(t)
	ctx := context.Background()

	obj, err := fs.Put(ctx, "brief.pdf", strings.NewReader("hello"), 5, "application/pdf")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Name != "brief.pdf" || obj.Size != 5 || obj.URL != "/attachments/brief.pdf" {
		t.Errorf("object = %+v", obj)
	}
	if _, err := os.Stat(filepath.Join(dir, "brief.pdf")); err != nil {
		t.Errorf("file missing on disk: %v", err)
	}

	rc, err := fs.Open(ctx, "brief.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "hello" {
		t.Errorf("content = %q", got)
	}

	if err := fs.Delete(ctx, "brief.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.Open(ctx, "brief.pdf"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Open after delete err = %v, want ErrNotFound", err)
	}
	if err := fs.Delete(ctx, "brief.pdf"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestFS_PutRefusesExisting(t *testing.T) {
	_, fs := tempFS(t)
	ctx := context.Background()
	if _, err := fs.Put(ctx, "a.txt", strings.NewReader("one"), -1, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := fs.Put(ctx, "a.txt", strings.NewReader("two"), -1, ""); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestFS_ConcurrentPutSameName(t *testing.T) {
	_, fs := tempFS(t)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fs.Put(context.Background(), "race.txt", strings.NewReader("x"), 1, ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

func TestFS_NoTempFilesLeft(t *testing.T) {
	dir, fs := tempFS(t)
	_, _ = fs.Put(context.Background(), "x.txt", strings.NewReader("data"), 4, "")
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".datalib-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFS_TraversalBlocked(t *testing.T) {
	_, fs := tempFS(t)
	ctx := context.Background()
	for _, name := range []string{"../../etc/passwd", "../outside.txt", "/etc/shadow", "sub/file.txt", "", ".hidden"} {
		if _, err := fs.Open(ctx, name); err == nil || errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected validation error for open %q, got %v", name, err)
		}
		if _, err := fs.Put(ctx, name, strings.NewReader("x"), 1, ""); err == nil {
			t.Errorf("expected error for put %q", name)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\my file.png`, "my_file.png"},
		{"..hidden.txt", "hidden.txt"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SanitizeName("..."); got == "" || strings.HasPrefix(got, ".") {
		t.Errorf("SanitizeName(...) = %q, want random name", got)
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFetchRemote_DataURI(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
	r, err := FetchRemote(context.Background(), uri, "")
	if err != nil {
		t.Fatalf("FetchRemote: %v", err)
	}
	if filepath.Ext(r.Name) != ".png" {
		t.Errorf("name = %q, want .png", r.Name)
	}
	if r.ContentType != "image/png" {
		t.Errorf("content type = %q", r.ContentType)
	}

	if _, err := FetchRemote(context.Background(), uri, "fake.pdf"); err == nil {
		t.Error("expected content/extension mismatch")
	}
	if _, err := FetchRemote(context.Background(), "data:image/png,plain", ""); err == nil {
		t.Error("expected non-base64 data URI to fail")
	}
}

func TestFetchRemote_RejectsLoopbackAndScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	if _, err := FetchRemote(context.Background(), srv.URL+"/a.png", ""); err == nil || !strings.Contains(err.Error(), "loopback") {
		t.Errorf("err = %v, want loopback rejection", err)
	}
	if _, err := FetchRemote(context.Background(), "ftp://example.com/a.png", ""); err == nil {
		t.Error("expected unsupported scheme error")
	}
}

func TestCheckContent(t *testing.T) {
	if err := checkContent([]byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`), ".svg"); err != nil {
		t.Errorf("svg: %v", err)
	}
	if err := checkContent([]byte("# notes\n"), ".md"); err != nil {
		t.Errorf("md: %v", err)
	}
	if err := checkContent(pngHeader, ".jpg"); err == nil {
		t.Error("expected png bytes to be rejected as jpg")
	}
}
