package models

import "time"

// Plan is the subscription plan of a project.
type Plan string

// Project plans.
const (
	PlanPersonal Plan = "personal"
	PlanCreator  Plan = "creator"
	PlanBusiness Plan = "business"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanPersonal || p == PlanCreator || p == PlanBusiness
}

// Project groups data items (row of the "projects" table).
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Plan        Plan      `json:"plan"`
	SocialLinks Metadata  `json:"social_links"`
	UserID      string    `json:"user_id"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectInsert holds the fields of a new project.
type ProjectInsert struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Plan        Plan     `json:"plan,omitempty"`
	SocialLinks Metadata `json:"social_links,omitempty"`
	Slug        string   `json:"slug,omitempty"`
}
