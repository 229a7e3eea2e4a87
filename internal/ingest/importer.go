package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/datalib/internal/library"
	"github.com/starford/datalib/internal/models"
)

// Metadata keys written on imported items.
const (
	MetaSourcePath = "source_path"
	MetaChecksum   = "checksum"
)

// EventCallback is called after an import changes an item. kind is one of
// "created", "updated", "deleted".
type EventCallback func(kind, path string)

// Report summarises a Sync run.
type Report struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Importer writes Markdown files into one project through a Library.
type Importer struct {
	lib       *library.Library
	projectID string
	prune     bool
	logger    *slog.Logger
	cb        EventCallback
}

// Option configures an Importer.
type Option func(*Importer)

// WithPrune makes the importer delete items whose source file is gone.
func WithPrune(prune bool) Option {
	return func(im *Importer) { im.prune = prune }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithCallback sets the change callback.
func WithCallback(cb EventCallback) Option {
	return func(im *Importer) { im.cb = cb }
}

// NewImporter creates an Importer. lib should be scoped to the owner and
// projectID so its cache holds the project's existing items.
func NewImporter(lib *library.Library, projectID string, opts ...Option) *Importer {
	im := &Importer{lib: lib, projectID: projectID, logger: slog.Default()}
	for _, fn := range opts {
		fn(im)
	}
	return im
}

type source struct {
	Path     string `json:"source_path"`
	Checksum string `json:"checksum"`
}

// imported maps source paths to the items created from them.
func (im *Importer) imported() map[string]models.DataItem {
	out := make(map[string]models.DataItem)
	for _, it := range im.lib.Items() {
		if it.ProjectID != im.projectID {
			continue
		}
		var src source
		if err := it.Metadata.Decode(&src); err != nil || src.Path == "" {
			continue
		}
		out[src.Path] = it
	}
	return out
}

// Sync imports every *.md file under dir: new files are created, changed
// files updated and unchanged ones skipped. With pruning enabled, items
// whose file no longer exists are deleted.
func (im *Importer) Sync(ctx context.Context, dir string) (Report, error) {
	var rep Report
	if err := im.lib.Refresh(ctx); err != nil {
		return rep, err
	}
	existing := im.imported()

	disk := make(map[string]struct{})
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		disk[rel] = struct{}{}

		kind, err := im.importFile(ctx, dir, rel, existing)
		switch {
		case err != nil:
			rep.Failed++
			im.logger.Warn("ingest: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		case kind == "created":
			rep.Created++
		case kind == "updated":
			rep.Updated++
		default:
			rep.Skipped++
		}
		return ctx.Err()
	})
	if err != nil {
		return rep, fmt.Errorf("ingest: walk %s: %w", dir, err)
	}

	if im.prune {
		for rel, it := range existing {
			if _, ok := disk[rel]; ok {
				continue
			}
			if err := im.lib.Delete(ctx, it.ID); err != nil {
				rep.Failed++
				im.logger.Warn("ingest: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
				continue
			}
			rep.Deleted++
			im.notify("deleted", rel)
		}
	}
	im.logger.Info("ingest: sync done",
		slog.String("dir", dir),
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("skipped", rep.Skipped),
		slog.Int("deleted", rep.Deleted),
		slog.Int("failed", rep.Failed))
	return rep, nil
}

// importFile creates or updates the item for rel. It returns "created",
// "updated", or "" when the file is unchanged.
func (im *Importer) importFile(ctx context.Context, dir, rel string, existing map[string]models.DataItem) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	cs := Checksum(data)
	prev, found := existing[rel]
	if found {
		var src source
		_ = prev.Metadata.Decode(&src)
		if src.Checksum == cs {
			return "", nil
		}
	}

	doc, err := Parse(data)
	if err != nil {
		return "", err
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filepath.Base(rel), ".md")
	}
	extra := doc.Extra
	extra[MetaSourcePath] = rel
	extra[MetaChecksum] = cs
	meta, err := models.NewMetadata(extra)
	if err != nil {
		return "", err
	}

	if !found {
		item, err := im.lib.Create(ctx, models.DataInsert{
			Title:       doc.Title,
			Description: models.StringPtr(doc.Description),
			Content:     models.StringPtr(doc.Content),
			Type:        doc.Type,
			Tags:        doc.Tags,
			Metadata:    meta,
			ProjectID:   im.projectID,
		})
		if err != nil {
			return "", err
		}
		existing[rel] = *item
		im.notify("created", rel)
		return "created", nil
	}

	item, err := im.lib.Update(ctx, prev.ID, models.DataUpdate{
		Title:       &doc.Title,
		Description: &doc.Description,
		Content:     &doc.Content,
		Type:        &doc.Type,
		Tags:        &doc.Tags,
		Metadata:    &meta,
	})
	if err != nil {
		return "", err
	}
	existing[rel] = *item
	im.notify("updated", rel)
	return "updated", nil
}

// remove deletes the item imported from rel, if any.
func (im *Importer) remove(ctx context.Context, rel string) error {
	it, ok := im.imported()[rel]
	if !ok {
		return nil
	}
	if err := im.lib.Delete(ctx, it.ID); err != nil {
		return err
	}
	im.notify("deleted", rel)
	return nil
}

func (im *Importer) notify(kind, path string) {
	im.logger.Debug("ingest: "+kind, slog.String("path", path))
	if im.cb != nil {
		im.cb(kind, path)
	}
}
