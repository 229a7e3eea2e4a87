package store

import (
	"fmt"
	"strings"
)

// Cond is an equality condition on a named column.
type Cond struct {
	Column string
	Value  any
}

// Eq returns a condition matching rows whose column equals value.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Value: value}
}

// Filter selects rows by equality on columns and orders them by one column.
// An empty OrderBy keeps the backend's natural order.
type Filter struct {
	Eq        []Cond
	OrderBy   string
	Ascending bool
}

// Where returns a copy of f with c appended.
func (f Filter) Where(c ...Cond) Filter {
	out := f
	out.Eq = append(append([]Cond{}, f.Eq...), c...)
	return out
}

// Order returns a copy of f ordered by column.
func (f Filter) Order(column string, ascending bool) Filter {
	out := f
	out.OrderBy = column
	out.Ascending = ascending
	return out
}

// Value returns the value of the first condition on column.
func (f Filter) Value(column string) (any, bool) {
	for _, c := range f.Eq {
		if c.Column == column {
			return c.Value, true
		}
	}
	return nil, false
}

// whereClause renders the equality conditions. Columns outside allowed are
// rejected so caller-supplied names never reach the SQL text.
func (f Filter) whereClause(allowed map[string]bool) (string, []any, error) {
	if len(f.Eq) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(f.Eq))
	args := make([]any, 0, len(f.Eq))
	for _, c := range f.Eq {
		if !allowed[c.Column] {
			return "", nil, fmt.Errorf("store: unknown filter column %q", c.Column)
		}
		parts = append(parts, c.Column+" = ?")
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// orderClause renders ORDER BY with id as a deterministic tie-breaker.
func (f Filter) orderClause(allowed map[string]bool) (string, error) {
	if f.OrderBy == "" {
		return "", nil
	}
	if !allowed[f.OrderBy] {
		return "", fmt.Errorf("store: unknown order column %q", f.OrderBy)
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	if f.OrderBy == "id" {
		return " ORDER BY id " + dir, nil
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", f.OrderBy, dir, dir), nil
}

func columnSet(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}
