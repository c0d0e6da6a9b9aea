// Package oauth holds the external identity providers the service accepts.
// The set is closed: Google (authorization-code redirect) and Apple
// (identity token posted by the client). Each one reduces its provider's
// response to a dto.ExternalProfile or fails with ErrUpstreamAuth.
package oauth

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
)

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// ErrUpstreamAuth means the provider rejected the user, errored, or returned
// a profile without a verified email. No partial profile is ever returned
// alongside it.
var ErrUpstreamAuth = errors.New("upstream authentication failed")

// RedirectProvider sends the browser to the provider and turns the returned
// authorization code into a profile.
type RedirectProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*dto.ExternalProfile, error)
}

// TokenProvider verifies an identity token obtained by a native client.
type TokenProvider interface {
	Name() string
	VerifyIdentityToken(ctx context.Context, token string) (*dto.ExternalProfile, error)
}

// emailVerified accepts the bool or "true"/"false" string forms providers use.
func emailVerified(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
