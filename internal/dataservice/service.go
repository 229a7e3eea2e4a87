// Package dataservice coordinates the per-user libraries, projects,
// profiles and attachments behind the REST API and the MCP server. Caller
// identity comes from the context (see auth.WithUser).
package dataservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/attachments"
	"github.com/starford/datalib/internal/auth"
	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/models"
	"github.com/starford/datalib/internal/store"
)

// Service is the application layer over the data library.
type Service struct {
	libs     *library.Registry
	projects *store.ProjectRepo
	profiles *store.ProfileRepo
	files    attachments.Provider
	logger   *slog.Logger
}

// New creates a Service. files may be nil when attachments are disabled.
func New(libs *library.Registry, projects *store.ProjectRepo, profiles *store.ProfileRepo, files attachments.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{libs: libs, projects: projects, profiles: profiles, files: files, logger: logger}
}

// ListResult is a filtered view of the caller's cache.
type ListResult struct {
	Items []models.DataItem `json:"items"`
	Total int               `json:"total"`
	// Error carries the message of the last failed fetch; Items are then
	// the previously cached ones.
	Error string `json:"error,omitempty"`
}

// List returns View(cache, f) for the caller.
func (s *Service) List(ctx context.Context, f library.FilterState) (*ListResult, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, invalid(err)
	}
	lib, err := s.library(ctx)
	if err != nil {
		return nil, err
	}
	items := library.View(lib.Items(), f)
	return &ListResult{Items: items, Total: len(items), Error: lib.Err()}, nil
}

// Get returns the cached item with the given id.
func (s *Service) Get(ctx context.Context, id string) (*models.DataItem, error) {
	lib, err := s.library(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := lib.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &item, nil
}

// Create validates in and creates the item. Without a project the caller's
// first project is used, created on demand.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.DataItem, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	lib, err := s.library(ctx)
	if err != nil {
		return nil, err
	}

	if user, ok := auth.UserFromContext(ctx); ok {
		if in.ProjectID == "" {
			p, err := s.projects.EnsureDefault(ctx, user)
			if err != nil {
				return nil, err
			}
			in.ProjectID = p.ID
		} else if err := s.checkProject(ctx, user, in.ProjectID); err != nil {
			return nil, err
		}
	}
	return lib.Create(ctx, in.insert())
}

// Update validates u and applies it to the item with the given id.
func (s *Service) Update(ctx context.Context, id string, u models.DataUpdate) (*models.DataItem, error) {
	u = normalizeUpdate(u)
	if err := validateUpdate(u); err != nil {
		return nil, invalid(err)
	}
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	lib, err := s.library(ctx)
	if err != nil {
		return nil, err
	}
	if u.ProjectID != nil {
		if err := s.checkProject(ctx, user, *u.ProjectID); err != nil {
			return nil, err
		}
	}
	return lib.Update(ctx, id, u)
}

// Delete removes the item with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, ok := auth.UserFromContext(ctx); !ok {
		return apperr.ErrNotAuthenticated
	}
	lib, err := s.library(ctx)
	if err != nil {
		return err
	}
	return lib.Delete(ctx, id)
}

// Refresh refetches the caller's cache and returns its size.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	lib, err := s.library(ctx)
	if err != nil {
		return 0, err
	}
	if err := lib.Refresh(ctx); err != nil {
		return 0, err
	}
	return len(lib.Items()), nil
}

// ListProjectData queries a project's items, optionally of one type,
// without touching the cache.
func (s *Service) ListProjectData(ctx context.Context, projectID, typ string) ([]models.DataItem, error) {
	var tp *models.DataType
	if typ != "" {
		t, err := models.ParseDataType(typ)
		if err != nil {
			return nil, invalid(err)
		}
		tp = &t
	}
	lib, err := s.library(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := auth.UserFromContext(ctx); !ok {
		return []models.DataItem{}, nil
	}
	return lib.ListByProject(ctx, projectID, tp)
}

// Projects lists the caller's projects.
func (s *Service) Projects(ctx context.Context) ([]models.Project, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return []models.Project{}, nil
	}
	return s.projects.ListByOwner(ctx, user)
}

// CreateProject validates in and creates a project for the caller.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.projects.Create(ctx, user, models.ProjectInsert(in))
}

// Profile returns the caller's profile.
func (s *Service) Profile(ctx context.Context) (*models.Profile, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	return s.profiles.Get(ctx, user)
}

// UpsertProfile validates in and stores the caller's profile.
func (s *Service) UpsertProfile(ctx context.Context, in ProfileInput) (*models.Profile, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.profiles.Upsert(ctx, user, models.ProfileUpsert(in))
}

// ErrAttachmentsDisabled is returned when no attachment store is
// configured.
var ErrAttachmentsDisabled = errors.New("attachments are disabled")

// Upload stores an attachment under a sanitized form of name.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (attachments.Object, error) {
	if s.files == nil {
		return attachments.Object{}, ErrAttachmentsDisabled
	}
	if _, ok := auth.UserFromContext(ctx); !ok {
		return attachments.Object{}, apperr.ErrNotAuthenticated
	}
	return s.files.Put(ctx, attachments.SanitizeName(name), r, size, contentType)
}

// Attach downloads rawURL, stores it and, when id is set, points the
// item's file fields at it.
func (s *Service) Attach(ctx context.Context, id, rawURL, name string) (attachments.Object, *models.DataItem, error) {
	remote, err := attachments.FetchRemote(ctx, rawURL, name)
	if err != nil {
		return attachments.Object{}, nil, invalid(err)
	}
	obj, err := s.Upload(ctx, remote.Name, bytes.NewReader(remote.Data), int64(len(remote.Data)), remote.ContentType)
	if err != nil {
		return attachments.Object{}, nil, err
	}
	if id == "" {
		return obj, nil, nil
	}
	item, err := s.Update(ctx, id, models.DataUpdate{FileURL: &obj.URL, FileName: &obj.Name, FileSize: &obj.Size})
	if err != nil {
		return obj, nil, err
	}
	return obj, item, nil
}

// OpenAttachment streams a stored attachment.
func (s *Service) OpenAttachment(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.files == nil {
		return nil, ErrAttachmentsDisabled
	}
	return s.files.Open(ctx, name)
}

func (s *Service) library(ctx context.Context) (*library.Library, error) {
	user, _ := auth.UserFromContext(ctx)
	return s.libs.For(ctx, user)
}

func (s *Service) checkProject(ctx context.Context, user, projectID string) error {
	if _, err := s.projects.Get(ctx, user, projectID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return invalid(validation.Errors{"project_id": errors.New("unknown project")})
		}
		return err
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
}

var dataTypeRule = validation.In(models.TypeContext, models.TypeIssue, models.TypeInquiry, models.TypeProduct)

var emailRule = is.Email
