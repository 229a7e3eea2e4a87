package dataservice

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/datalib/internal/models"
)

// CreateInput is the create-form payload.
type CreateInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content,omitempty"`
	FileURL     string          `json:"file_url,omitempty"`
	FileName    string          `json:"file_name,omitempty"`
	FileSize    int64           `json:"file_size,omitempty"`
	Type        models.DataType `json:"type"`
	Tags        []string        `json:"tags,omitempty"`
	Metadata    models.Metadata `json:"metadata,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
}

// Validate checks the required title and the type.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Type, validation.Required, dataTypeRule),
		validation.Field(&in.FileSize, validation.Min(int64(0))),
		validation.Field(&in.Tags, validation.Each(validation.Length(1, 64))),
	)
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Type = models.DataType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	in.Tags = NormalizeTags(in.Tags)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
}

func (in CreateInput) insert() models.DataInsert {
	out := models.DataInsert{
		Title:       in.Title,
		Description: models.StringPtr(in.Description),
		Content:     models.StringPtr(in.Content),
		FileURL:     models.StringPtr(in.FileURL),
		FileName:    models.StringPtr(in.FileName),
		Type:        in.Type,
		Tags:        in.Tags,
		Metadata:    in.Metadata,
		ProjectID:   in.ProjectID,
	}
	if in.FileSize > 0 {
		size := in.FileSize
		out.FileSize = &size
	}
	return out
}

// NormalizeTags trims tags, drops empty ones and removes duplicates,
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func normalizeUpdate(u models.DataUpdate) models.DataUpdate {
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
	}
	if u.Type != nil {
		t := models.DataType(strings.ToLower(strings.TrimSpace(string(*u.Type))))
		u.Type = &t
	}
	if u.Tags != nil {
		tags := NormalizeTags(*u.Tags)
		u.Tags = &tags
	}
	return u
}

type updateCheck struct {
	Fields   bool
	Title    string
	HasTitle bool
	Type     models.DataType
	FileSize int64
}

func validateUpdate(u models.DataUpdate) error {
	c := updateCheck{Fields: !u.Empty()}
	if u.Title != nil {
		c.Title, c.HasTitle = *u.Title, true
	}
	if u.Type != nil {
		c.Type = *u.Type
	}
	if u.FileSize != nil {
		c.FileSize = *u.FileSize
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Fields, validation.Required.Error("no fields to update")),
		validation.Field(&c.Title, validation.When(c.HasTitle, validation.Required, validation.Length(1, 500))),
		validation.Field(&c.Type, validation.When(u.Type != nil, validation.Required, dataTypeRule)),
		validation.Field(&c.FileSize, validation.Min(int64(0))),
	)
}

// ProjectInput is the create-project payload.
type ProjectInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Plan        models.Plan     `json:"plan,omitempty"`
	SocialLinks models.Metadata `json:"social_links,omitempty"`
	Slug        string          `json:"slug,omitempty"`
}

// Validate checks the name and plan.
func (in ProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Plan, validation.In(models.PlanPersonal, models.PlanCreator, models.PlanBusiness)),
	)
}

// ProfileInput is the profile payload.
type ProfileInput struct {
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Validate checks the email.
func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, emailRule),
	)
}
