package api

import (
	"github.com/starford/datalib/internal/attachments"
	"github.com/starford/datalib/internal/dataservice"
	"github.com/starford/datalib/internal/models"
)

// CreateDataRequest is the request body for creating a data item.
type CreateDataRequest = dataservice.CreateInput

// UpdateDataRequest is the request body for a partial update. Omitted
// fields are left unchanged; an empty string clears a nullable field.
type UpdateDataRequest = models.DataUpdate

// DataItem is the data item response type (aliased from the domain layer).
type DataItem = models.DataItem

// DataListResponse is a filtered view of the caller's cached items.
type DataListResponse = dataservice.ListResult

// RefreshResponse reports the cache size after a refresh.
type RefreshResponse struct {
	Count int `json:"count" example:"12" validate:"required"`
}

// ProjectDataResponse wraps the items of one project.
type ProjectDataResponse struct {
	Items []DataItem `json:"items" validate:"required"`
	Total int        `json:"total" example:"3" validate:"required"`
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest = dataservice.ProjectInput

// ProjectListResponse wraps the caller's projects.
type ProjectListResponse struct {
	Projects []models.Project `json:"projects" validate:"required"`
}

// ProfileRequest is the request body for storing the caller's profile.
type ProfileRequest = dataservice.ProfileInput

// AttachmentUploadResponse is returned after a successful attachment upload.
// Its fields can be copied into a data item's file columns.
type AttachmentUploadResponse = attachments.Object

// DataTypesResponse lists the known data types.
type DataTypesResponse struct {
	Types []models.DataTypeInfo `json:"types" validate:"required"`
}
