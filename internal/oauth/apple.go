package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
)

const (
	appleIssuer  = "https://appleid.apple.com"
	AppleJWKSURL = "https://appleid.apple.com/auth/keys"
)

type appleClaims struct {
	jwt.RegisteredClaims
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
}

// Apple verifies Sign in with Apple identity tokens against Apple's JWKS.
type Apple struct {
	keyfunc   jwt.Keyfunc
	audiences []string
	jwks      *keyfunc.JWKS
}

// NewApple fetches the key set once and keeps it refreshed in the background.
func NewApple(jwksURL string, audiences []string) (*Apple, error) {
	if jwksURL == "" {
		jwksURL = AppleJWKSURL
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   24 * time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			slog.Error("apple jwks refresh failed", "provider", ProviderApple, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch apple jwks: %w", err)
	}
	a := NewAppleWithKeyfunc(jwks.Keyfunc, audiences)
	a.jwks = jwks
	return a, nil
}

// NewAppleWithKeyfunc builds a verifier over an existing key source.
func NewAppleWithKeyfunc(kf jwt.Keyfunc, audiences []string) *Apple {
	return &Apple{keyfunc: kf, audiences: audiences}
}

func (a *Apple) Name() string { return ProviderApple }

func (a *Apple) VerifyIdentityToken(_ context.Context, raw string) (*dto.ExternalProfile, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing identity token", ErrUpstreamAuth)
	}

	claims := &appleClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, a.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(appleIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	if !a.audienceAllowed(claims.Audience) {
		return nil, fmt.Errorf("%w: unexpected audience %v", ErrUpstreamAuth, claims.Audience)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: token missing sub or email", ErrUpstreamAuth)
	}
	if !emailVerified(claims.EmailVerified) {
		return nil, fmt.Errorf("%w: email not verified", ErrUpstreamAuth)
	}

	return &dto.ExternalProfile{
		Provider:   ProviderApple,
		ExternalID: claims.Subject,
		Email:      claims.Email,
	}, nil
}

func (a *Apple) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, candidate := range aud {
		if slices.Contains(a.audiences, candidate) {
			return true
		}
	}
	return false
}

// Close stops the background key refresh.
func (a *Apple) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}
