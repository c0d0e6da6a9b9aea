package models

import (
	"time"

	"github.com/google/uuid"
)

// ExternalIdentity links a user to a subject id asserted by an OAuth provider.
// (provider, subject) is globally unique and a user has at most one row per provider.
type ExternalIdentity struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_identities_user_provider" json:"user_id"`
	Provider  string    `gorm:"size:32;not null;uniqueIndex:idx_identities_provider_subject;uniqueIndex:idx_identities_user_provider" json:"provider"`
	Subject   string    `gorm:"size:255;not null;uniqueIndex:idx_identities_provider_subject" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
