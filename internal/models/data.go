// Package models describes the records stored by datalib: profiles, projects
// and knowledge-base data items.
package models

import (
	"fmt"
	"time"
)

// DataType classifies a data item.
type DataType string

// Data item types.
const (
	TypeContext DataType = "context"
	TypeIssue   DataType = "issue"
	TypeInquiry DataType = "inquiry"
	TypeProduct DataType = "product"
)

// DataTypeInfo is the display description of a DataType.
type DataTypeInfo struct {
	ID          DataType `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

// DataTypes lists every DataType in display order.
var DataTypes = []DataTypeInfo{
	{ID: TypeContext, Name: "Context", Description: "Background knowledge about your business, audience and voice"},
	{ID: TypeIssue, Name: "Issue", Description: "Known problems, bugs and their resolutions"},
	{ID: TypeInquiry, Name: "Inquiry", Description: "Frequently asked questions and their answers"},
	{ID: TypeProduct, Name: "Product", Description: "Products, features, pricing and specifications"},
}

// Valid reports whether t is one of the known types.
func (t DataType) Valid() bool {
	switch t {
	case TypeContext, TypeIssue, TypeInquiry, TypeProduct:
		return true
	}
	return false
}

// Name returns the display name of t, or "Data" for unknown types.
func (t DataType) Name() string {
	for _, info := range DataTypes {
		if info.ID == t {
			return info.Name
		}
	}
	return "Data"
}

// ParseDataType converts s into a DataType.
func ParseDataType(s string) (DataType, error) {
	t := DataType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// DataItem is a single knowledge-base record (row of the "data" table).
type DataItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Content     *string   `json:"content"`
	FileURL     *string   `json:"file_url"`
	FileName    *string   `json:"file_name"`
	FileSize    *int64    `json:"file_size"`
	Type        DataType  `json:"type"`
	Tags        []string  `json:"tags"`
	Metadata    Metadata  `json:"metadata"`
	UserID      string    `json:"user_id"`
	ProjectID   string    `json:"project_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DataInsert holds the fields of a new data item. The owner is supplied
// separately by the caller that resolved the current identity.
type DataInsert struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Content     *string  `json:"content,omitempty"`
	FileURL     *string  `json:"file_url,omitempty"`
	FileName    *string  `json:"file_name,omitempty"`
	FileSize    *int64   `json:"file_size,omitempty"`
	Type        DataType `json:"type"`
	Tags        []string `json:"tags,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
	ProjectID   string   `json:"project_id"`
}

// DataUpdate is a partial update. Nil fields are left unchanged. An empty
// string clears a nullable text column and a non-positive FileSize clears
// the file size.
type DataUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Content     *string   `json:"content,omitempty"`
	FileURL     *string   `json:"file_url,omitempty"`
	FileName    *string   `json:"file_name,omitempty"`
	FileSize    *int64    `json:"file_size,omitempty"`
	Type        *DataType `json:"type,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
}

// Empty reports whether u changes no column.
func (u DataUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Content == nil &&
		u.FileURL == nil && u.FileName == nil && u.FileSize == nil &&
		u.Type == nil && u.Tags == nil && u.Metadata == nil && u.ProjectID == nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
