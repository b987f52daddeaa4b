package users

import (
	"time"

	"attendtrack/internal/auth"
)

// Provider is how the user authenticates.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
)

// User is a registered account.
type User struct {
	UID          string    `json:"uid"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PhotoURL     *string   `json:"photo_url"`
	Role         auth.Role `json:"role"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registration_date"`
	UpdatedAt    time.Time `json:"last_update_date"`
	Provider     Provider  `json:"auth_provider"`
	PasswordHash string    `json:"-"`
}

// Session turns the user into the AuthContext carried by its tokens.
func (u User) Session() auth.AuthContext {
	return auth.AuthContext{
		UserID:   u.UID,
		FullName: u.FullName,
		Role:     u.Role,
		Provider: string(u.Provider),
	}
}

// Session is returned by every sign-in flow.
type Session struct {
	User   User           `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// ProfileUpdate carries the profile fields to change. Nil fields are left as they are.
type ProfileUpdate struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}
