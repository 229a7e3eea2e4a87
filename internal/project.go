package internal

import (
	"context"
	"errors"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/models"
	"github.com/starford/datalib/internal/store"
)

// resolveProject finds userID's project by id, slug or name, creating it
// when ref names no existing project. An empty ref selects the default.
func resolveProject(ctx context.Context, projects *store.ProjectRepo, userID, ref string) (*models.Project, error) {
	if ref == "" {
		return projects.EnsureDefault(ctx, userID)
	}
	p, err := projects.Get(ctx, userID, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	list, err := projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	slug := store.Slugify(ref)
	for i := range list {
		if list[i].Slug == ref || list[i].Slug == slug || list[i].Name == ref {
			return &list[i], nil
		}
	}
	return projects.Create(ctx, userID, models.ProjectInsert{Name: ref})
}
