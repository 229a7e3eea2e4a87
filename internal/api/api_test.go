package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/datalib/internal/auth"
	"github.com/starford/datalib/internal/dataservice"
	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/models"
	"github.com/starford/datalib/internal/store"
	"github.com/starford/datalib/internal/testutil"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testEnv sets up a temp SQLite DB, attachment dir, service and router.
// An empty defaultUser with no users means disabled mode without identity.
func testEnv(t *testing.T, mode auth.Mode, defaultUser string, users ...auth.User) (http.Handler, *store.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	_, files := testutil.TestAttachments(t)

	reg := library.NewRegistry(store.NewDataRepo(db), nil)
	t.Cleanup(reg.Close)
	svc := dataservice.New(reg, store.NewProjectRepo(db), store.NewProfileRepo(db), files, nil)

	resolver, err := auth.NewResolver(mode, defaultUser, users)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	r := chi.NewRouter()
	r.Mount("/api", NewRouter(svc, resolver))
	r.Get("/attachments/{filename}", NewAttachmentHandler(svc).ServeFile)
	return r, db
}

func do(t *testing.T, h http.Handler, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetData(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	w := do(t, router, http.MethodPost, "/api/data", map[string]any{
		"title": "Refund policy", "type": "inquiry", "content": "30 days", "tags": []string{"billing"},
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.DataItem](t, w)
	if created.UserID != "u1" || created.ProjectID == "" {
		t.Errorf("owner/project = %q/%q", created.UserID, created.ProjectID)
	}

	w = do(t, router, http.MethodGet, "/api/data/"+created.ID, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[models.DataItem](t, w)
	if got.Title != "Refund policy" || *got.Content != "30 days" {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateData_Invalid(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	w := do(t, router, http.MethodPost, "/api/data", map[string]any{"title": "", "type": "note"}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decode[errResponse](t, w)
	if _, ok := body.Fields["title"]; !ok {
		t.Errorf("missing title error in %+v", body)
	}
	if _, ok := body.Fields["type"]; !ok {
		t.Errorf("missing type error in %+v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/data", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", rec.Code)
	}
}

func TestCreateData_NoIdentity(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "")

	w := do(t, router, http.MethodPost, "/api/data", map[string]any{"title": "x", "type": "issue"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("create without identity = %d, want 401", w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/data", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	if res := decode[DataListResponse](t, w); res.Total != 0 {
		t.Errorf("total = %d, want 0", res.Total)
	}
}

func TestListData_FilterAndSort(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	for _, in := range []map[string]any{
		{"title": "banana", "type": "product"},
		{"title": "Apple", "type": "product", "description": "fruit"},
		{"title": "crash on login", "type": "issue"},
	} {
		if w := do(t, router, http.MethodPost, "/api/data", in, ""); w.Code != http.StatusCreated {
			t.Fatalf("create = %d", w.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/api/data?type=product&sort=title", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	res := decode[DataListResponse](t, w)
	if res.Total != 2 || res.Items[0].Title != "Apple" || res.Items[1].Title != "banana" {
		t.Errorf("items = %+v", res.Items)
	}

	w = do(t, router, http.MethodGet, "/api/data?type=product&search=FRUIT", nil, "")
	res = decode[DataListResponse](t, w)
	if res.Total != 1 || res.Items[0].Title != "Apple" {
		t.Errorf("search items = %+v", res.Items)
	}

	w = do(t, router, http.MethodGet, "/api/data?type=Issue&sort=%20Oldest%20", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("mixed-case list = %d, body = %s", w.Code, w.Body.String())
	}
	res = decode[DataListResponse](t, w)
	if res.Total != 1 || res.Items[0].Title != "crash on login" {
		t.Errorf("issue items = %+v", res.Items)
	}

	// Without a type the list defaults to context items.
	w = do(t, router, http.MethodGet, "/api/data", nil, "")
	res = decode[DataListResponse](t, w)
	if res.Total != 0 {
		t.Errorf("default total = %d, want 0", res.Total)
	}

	w = do(t, router, http.MethodGet, "/api/data?type=all", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("type=all = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/data?sort=random", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestUpdateData(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	w := do(t, router, http.MethodPost, "/api/data", map[string]any{"title": "v1", "type": "context", "description": "old"}, "")
	created := decode[models.DataItem](t, w)

	w = do(t, router, http.MethodPatch, "/api/data/"+created.ID, map[string]any{"title": "v2", "description": ""}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[models.DataItem](t, w)
	if updated.Title != "v2" || updated.Description != nil {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}

	w = do(t, router, http.MethodPatch, "/api/data/"+created.ID, map[string]any{}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty update = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPatch, "/api/data/ghost", map[string]any{"title": "x"}, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteData(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	w := do(t, router, http.MethodPost, "/api/data", map[string]any{"title": "bye", "type": "issue"}, "")
	created := decode[models.DataItem](t, w)

	w = do(t, router, http.MethodDelete, "/api/data/"+created.ID, nil, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/data/"+created.ID, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/api/data/"+created.ID, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestRefreshData(t *testing.T) {
	router, db := testEnv(t, auth.ModeDisabled, "u1")
	p := testutil.TestProject(t, db, "u1", "Docs")

	// Written behind the cache's back.
	_, err := store.NewDataRepo(db).Insert(t.Context(), "u1", models.DataInsert{Title: "side", Type: models.TypeIssue, ProjectID: p.ID})
	if err != nil {
		t.Fatal(err)
	}

	w := do(t, router, http.MethodPost, "/api/data/refresh", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh = %d", w.Code)
	}
	if res := decode[RefreshResponse](t, w); res.Count != 1 {
		t.Errorf("count = %d, want 1", res.Count)
	}
}

func TestProjectsAndProjectData(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	w := do(t, router, http.MethodPost, "/api/projects", map[string]any{"name": "Coffee Shop"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create project = %d, body = %s", w.Code, w.Body.String())
	}
	p := decode[models.Project](t, w)
	if p.Slug != "coffee-shop" {
		t.Errorf("slug = %q", p.Slug)
	}

	w = do(t, router, http.MethodPost, "/api/projects", map[string]any{"name": "Coffee Shop"}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate project = %d, want 409", w.Code)
	}

	for _, typ := range []string{"issue", "product", "issue"} {
		do(t, router, http.MethodPost, "/api/data", map[string]any{"title": typ, "type": typ, "project_id": p.ID}, "")
	}

	w = do(t, router, http.MethodGet, "/api/projects/"+p.ID+"/data?type=issue", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("project data = %d", w.Code)
	}
	if res := decode[ProjectDataResponse](t, w); res.Total != 2 {
		t.Errorf("issues = %d, want 2", res.Total)
	}

	w = do(t, router, http.MethodGet, "/api/projects", nil, "")
	if res := decode[ProjectListResponse](t, w); len(res.Projects) != 1 {
		t.Errorf("projects = %d, want 1", len(res.Projects))
	}
}

func TestProfile(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	if w := do(t, router, http.MethodGet, "/api/profile", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing profile = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/api/profile", map[string]any{"email": "nope"}, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad email = %d, want 400", w.Code)
	}
	w := do(t, router, http.MethodPut, "/api/profile", map[string]any{"email": "ada@example.com", "full_name": "Ada"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("put profile = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/api/profile", nil, "")
	if p := decode[models.Profile](t, w); p.Email != "ada@example.com" {
		t.Errorf("email = %q", p.Email)
	}
}

func TestDataTypes(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "")
	w := do(t, router, http.MethodGet, "/api/types", nil, "")
	if res := decode[DataTypesResponse](t, w); len(res.Types) != 4 {
		t.Errorf("types = %d, want 4", len(res.Types))
	}
}

func TestUploadAndServeAttachment(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "guide.txt")
	_, _ = fw.Write([]byte("read me"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	obj := decode[AttachmentUploadResponse](t, w)
	if obj.Name != "guide.txt" || obj.Size != 7 || obj.URL != "/attachments/guide.txt" {
		t.Errorf("object = %+v", obj)
	}

	w = do(t, router, http.MethodGet, "/attachments/guide.txt", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "read me" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/attachments/missing.txt", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing attachment = %d, want 404", w.Code)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	router, _ := testEnv(t, auth.ModeDisabled, "u1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("upload without file = %d, want 400", w.Code)
	}
}

func TestAuth_TokenMode(t *testing.T) {
	router, _ := testEnv(t, auth.ModeToken, "",
		auth.User{Token: "tok-a", UserID: "alice"},
		auth.User{Token: "tok-b", UserID: "bob"},
	)

	if w := do(t, router, http.MethodGet, "/api/data", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/data", nil, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	w := do(t, router, http.MethodPost, "/api/data", map[string]any{"title": "alice's", "type": "context"}, "tok-a")
	if w.Code != http.StatusCreated {
		t.Fatalf("authed create = %d, want 201", w.Code)
	}
	created := decode[models.DataItem](t, w)

	// Bob sees nothing and cannot touch Alice's item.
	w = do(t, router, http.MethodGet, "/api/data", nil, "tok-b")
	if res := decode[DataListResponse](t, w); res.Total != 0 {
		t.Errorf("bob total = %d, want 0", res.Total)
	}
	if w := do(t, router, http.MethodDelete, "/api/data/"+created.ID, nil, "tok-b"); w.Code != http.StatusNotFound {
		t.Errorf("bob delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/data", nil, "tok-a")
	if res := decode[DataListResponse](t, w); res.Total != 1 {
		t.Errorf("alice total = %d, want 1", res.Total)
	}
}

func TestServeAttachment_Unauthenticated(t *testing.T) {
	router, _ := testEnv(t, auth.ModeToken, "", auth.User{Token: "t", UserID: "u"})
	if w := do(t, router, http.MethodGet, "/attachments/none.png", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("public attachment route = %d, want 404", w.Code)
	}
}
