package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/models"
)

const projectColumns = `id, name, description, plan, social_links, user_id, slug, created_at, updated_at`

// DefaultProjectName is the name of the project created for owners who
// have none.
const DefaultProjectName = "default"

// ProjectRepo provides access to the "projects" table.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a ProjectRepo.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// ListByOwner returns the owner's projects, newest first.
func (r *ProjectRepo) ListByOwner(ctx context.Context, userID string) ([]models.Project, error) {
	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate projects: %w", err)
	}
	return projects, nil
}

// Get returns the project with the given id owned by userID.
func (r *ProjectRepo) Get(ctx context.Context, userID, id string) (*models.Project, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`), id, userID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}

// Create inserts a project owned by userID. An empty slug is derived from
// the name; an empty plan becomes personal.
func (r *ProjectRepo) Create(ctx context.Context, userID string, in models.ProjectInsert) (*models.Project, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: create project: user_id is required")
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}
	plan := in.Plan
	if plan == "" {
		plan = models.PlanPersonal
	}
	var social any
	if len(in.SocialLinks) > 0 {
		social = in.SocialLinks
	}
	ts := now()

	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(`
		INSERT INTO projects (id, name, description, plan, social_links, user_id, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+projectColumns),
		uuid.NewString(), in.Name, in.Description, string(plan), social, userID, slug, ts, ts,
	)
	p, err := scanProject(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("store: create project %q: %w", slug, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store: create project: %w", err)
	}
	return p, nil
}

// EnsureDefault returns the owner's oldest project, creating the default
// project when the owner has none.
func (r *ProjectRepo) EnsureDefault(ctx context.Context, userID string) (*models.Project, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`), userID)
	p, err := scanProject(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: first project: %w", err)
	}
	return r.Create(ctx, userID, models.ProjectInsert{Name: DefaultProjectName})
}

// Slugify lower-cases name and collapses every run of non-alphanumeric
// characters into a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "project"
	}
	return s
}

func scanProject(s rowScanner) (*models.Project, error) {
	var (
		p    models.Project
		plan string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &plan, &p.SocialLinks, &p.UserID, &p.Slug, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Plan = models.Plan(plan)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// isUniqueViolation matches the unique-constraint errors of both drivers
// without importing their error types.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
