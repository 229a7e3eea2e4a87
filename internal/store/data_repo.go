package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/datalib/internal/apperr"
	"github.com/starford/datalib/internal/models"
)

const dataColumns = `id, title, description, content, file_url, file_name, file_size, type, tags, metadata, user_id, project_id, created_at, updated_at`

var dataFilterColumns = columnSet("id", "user_id", "project_id", "type", "title")
var dataOrderColumns = columnSet("id", "created_at", "updated_at", "title")

// DataRepo provides access to the "data" table.
type DataRepo struct {
	db *DB
}

// NewDataRepo creates a DataRepo.
func NewDataRepo(db *DB) *DataRepo {
	return &DataRepo{db: db}
}

// Select returns the rows matching f.
func (r *DataRepo) Select(ctx context.Context, f Filter) ([]models.DataItem, error) {
	where, args, err := f.whereClause(dataFilterColumns)
	if err != nil {
		return nil, err
	}
	order, err := f.orderClause(dataOrderColumns)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(`SELECT `+dataColumns+` FROM data`+where+order), args...)
	if err != nil {
		return nil, fmt.Errorf("store: select data: %w", err)
	}
	defer rows.Close()

	items := make([]models.DataItem, 0)
	for rows.Next() {
		item, err := scanData(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate data: %w", err)
	}
	return items, nil
}

// Insert creates a data item owned by userID and returns the stored row.
func (r *DataRepo) Insert(ctx context.Context, userID string, in models.DataInsert) (*models.DataItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("store: insert data: user_id is required")
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	ts := now()

	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(`
		INSERT INTO data (id, title, description, content, file_url, file_name, file_size, type, tags, metadata, user_id, project_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+dataColumns),
		uuid.NewString(), in.Title, nullString(in.Description), nullString(in.Content),
		nullString(in.FileURL), nullString(in.FileName), nullInt64(in.FileSize),
		string(in.Type), tags, in.Metadata, userID, in.ProjectID, ts, ts,
	)
	item, err := scanData(row)
	if err != nil {
		return nil, fmt.Errorf("store: insert data: %w", err)
	}
	return item, nil
}

// Update applies u to the row identified by f and returns it. f must
// contain an "id" condition.
func (r *DataRepo) Update(ctx context.Context, f Filter, u models.DataUpdate) (*models.DataItem, error) {
	if _, ok := f.Value("id"); !ok {
		return nil, fmt.Errorf("store: update data: id filter is required")
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.Description != nil {
		set("description", emptyToNull(*u.Description))
	}
	if u.Content != nil {
		set("content", emptyToNull(*u.Content))
	}
	if u.FileURL != nil {
		set("file_url", emptyToNull(*u.FileURL))
	}
	if u.FileName != nil {
		set("file_name", emptyToNull(*u.FileName))
	}
	if u.FileSize != nil {
		if *u.FileSize > 0 {
			set("file_size", *u.FileSize)
		} else {
			set("file_size", nil)
		}
	}
	if u.Type != nil {
		set("type", string(*u.Type))
	}
	if u.Tags != nil {
		tags, err := encodeTags(*u.Tags)
		if err != nil {
			return nil, err
		}
		set("tags", tags)
	}
	if u.Metadata != nil {
		set("metadata", *u.Metadata)
	}
	if u.ProjectID != nil {
		set("project_id", *u.ProjectID)
	}
	set("updated_at", now())

	where, whereArgs, err := f.whereClause(dataFilterColumns)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	query := `UPDATE data SET ` + strings.Join(sets, ", ") + where + ` RETURNING ` + dataColumns
	item, err := scanData(r.db.conn.QueryRowContext(ctx, r.db.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: update data: %w", err)
	}
	return item, nil
}

// Delete removes the rows matching f. It returns apperr.ErrNotFound when
// nothing matched.
func (r *DataRepo) Delete(ctx context.Context, f Filter) error {
	if len(f.Eq) == 0 {
		return fmt.Errorf("store: delete data: filter is required")
	}
	where, args, err := f.whereClause(dataFilterColumns)
	if err != nil {
		return err
	}
	res, err := r.db.conn.ExecContext(ctx, r.db.rebind(`DELETE FROM data`+where), args...)
	if err != nil {
		return fmt.Errorf("store: delete data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete data: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanData(s rowScanner) (*models.DataItem, error) {
	var (
		item                                    models.DataItem
		description, content, fileURL, fileName sql.NullString
		fileSize                                sql.NullInt64
		typ, tags                               string
	)
	err := s.Scan(&item.ID, &item.Title, &description, &content, &fileURL, &fileName, &fileSize,
		&typ, &tags, &item.Metadata, &item.UserID, &item.ProjectID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Description = ptrString(description)
	item.Content = ptrString(content)
	item.FileURL = ptrString(fileURL)
	item.FileName = ptrString(fileName)
	if fileSize.Valid {
		v := fileSize.Int64
		item.FileSize = &v
	}
	item.Type = models.DataType(typ)
	if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
		return nil, fmt.Errorf("store: decode tags: %w", err)
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("store: encode tags: %w", err)
	}
	return string(b), nil
}

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
