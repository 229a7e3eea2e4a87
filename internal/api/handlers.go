package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/datalib/internal/dataservice"
	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/models"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Handler holds API route handlers.
type Handler struct {
	svc *dataservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *dataservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListData handles GET /api/data.
//
//	@Summary		List the caller's data items, filtered and sorted
//	@Tags			data
//	@Produce		json
//	@Param			type	query		string	false	"Item type, defaults to context"	Enums(context, issue, inquiry, product)
//	@Param			search	query		string	false	"Case-insensitive search in title, description and content"
//	@Param			sort	query		string	false	"Ordering"	Enums(newest, oldest, title, updated)
//	@Success		200		{object}	DataListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data [get]
func (h *Handler) ListData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy, err := library.ParseSort(q.Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	f := library.FilterState{
		Search: q.Get("search"),
		Type:   models.DataType(strings.ToLower(strings.TrimSpace(q.Get("type")))),
		SortBy: sortBy,
	}
	res, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, "list data", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetData handles GET /api/data/{id}.
//
//	@Summary		Get a single cached data item
//	@Tags			data
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	DataItem
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data/{id} [get]
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get data", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateData handles POST /api/data.
//
//	@Summary		Create a data item
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDataRequest	true	"Item to create"
//	@Success		201		{object}	DataItem
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data [post]
func (h *Handler) CreateData(w http.ResponseWriter, r *http.Request) {
	var req CreateDataRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	item, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create data", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateData handles PATCH /api/data/{id}.
//
//	@Summary		Partially update a data item
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Item id"
//	@Param			body	body		UpdateDataRequest	true	"Fields to change"
//	@Success		200		{object}	DataItem
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data/{id} [patch]
func (h *Handler) UpdateData(w http.ResponseWriter, r *http.Request) {
	var req UpdateDataRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	item, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update data", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteData handles DELETE /api/data/{id}.
//
//	@Summary		Delete a data item
//	@Tags			data
//	@Param			id	path	string	true	"Item id"
//	@Success		204	"Item deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data/{id} [delete]
func (h *Handler) DeleteData(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete data", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshData handles POST /api/data/refresh.
//
//	@Summary		Refetch the caller's items from the database
//	@Tags			data
//	@Produce		json
//	@Success		200	{object}	RefreshResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data/refresh [post]
func (h *Handler) RefreshData(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, "refresh data", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Count: n})
}

// ListProjects handles GET /api/projects.
//
//	@Summary		List the caller's projects, newest first
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.Projects(r.Context())
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: projects})
}

// CreateProject handles POST /api/projects.
//
//	@Summary		Create a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateProjectRequest	true	"Project to create"
//	@Success		201		{object}	models.Project
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	p, err := h.svc.CreateProject(r.Context(), req)
	if err != nil {
		writeError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListProjectData handles GET /api/projects/{id}/data.
//
//	@Summary		List the items of a project without touching the cache
//	@Tags			projects
//	@Produce		json
//	@Param			id		path		string	true	"Project id"
//	@Param			type	query		string	false	"Restrict to one type"	Enums(context, issue, inquiry, product)
//	@Success		200		{object}	ProjectDataResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id}/data [get]
func (h *Handler) ListProjectData(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListProjectData(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, "list project data", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectDataResponse{Items: items, Total: len(items)})
}

// GetProfile handles GET /api/profile.
//
//	@Summary		Get the caller's profile
//	@Tags			profile
//	@Produce		json
//	@Success		200	{object}	models.Profile
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context())
	if err != nil {
		writeError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PutProfile handles PUT /api/profile.
//
//	@Summary		Create or replace the caller's profile
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ProfileRequest	true	"Profile"
//	@Success		200		{object}	models.Profile
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profile [put]
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	p, err := h.svc.UpsertProfile(r.Context(), req)
	if err != nil {
		writeError(w, "put profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DataTypes handles GET /api/types.
//
//	@Summary		List the data types with display names
//	@Tags			data
//	@Produce		json
//	@Success		200	{object}	DataTypesResponse
//	@Router			/types [get]
func (h *Handler) DataTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DataTypesResponse{Types: models.DataTypes})
}
