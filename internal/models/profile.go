package models

import "time"

// Profile is the public profile of a user (row of the "profiles" table).
// Its ID is the user id.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpsert holds the writable profile fields.
type ProfileUpsert struct {
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
