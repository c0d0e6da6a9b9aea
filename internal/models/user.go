package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the only persisted account entity. A row always carries at least
// one way to authenticate: a password hash, a linked external identity, or both.
type User struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string             `gorm:"size:50;not null" json:"name"`
	Email        string             `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	PasswordHash string             `gorm:"size:255" json:"-"`
	Verified     bool               `gorm:"not null;default:false" json:"verified"`
	LastLogin    *time.Time         `json:"last_login,omitempty"`
	Identities   []ExternalIdentity `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// HasPassword reports whether the account can log in with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ExternalID returns the subject linked for provider, or "" when none is.
func (u *User) ExternalID(provider string) string {
	for _, ident := range u.Identities {
		if ident.Provider == provider {
			return ident.Subject
		}
	}
	return ""
}

// Providers lists the external providers linked to the account.
func (u *User) Providers() []string {
	out := make([]string, 0, len(u.Identities))
	for _, ident := range u.Identities {
		out = append(out, ident.Provider)
	}
	return out
}
