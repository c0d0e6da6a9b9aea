// Package session moves session tokens between client and server, either in
// the "token" cookie or an Authorization: Bearer header.
package session

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	CookieName   = "token"
	bearerPrefix = "bearer "
)

type Transport struct {
	secure bool
	ttl    time.Duration
}

// NewTransport builds a transport whose cookies live for ttl. When secure is
// false the Secure attribute is still set for requests that arrived over TLS.
func NewTransport(secure bool, ttl time.Duration) *Transport {
	return &Transport{secure: secure, ttl: ttl}
}

func (t *Transport) Secure(c *fiber.Ctx) bool {
	return t.secure || c.Secure()
}

// SetCookie attaches token as an HTTP-only, SameSite=Strict cookie.
func (t *Transport) SetCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(t.ttl.Seconds()),
		Expires:  time.Now().Add(t.ttl),
		Secure:   t.Secure(c),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// ClearCookie overwrites the session cookie with an already-expired one.
func (t *Transport) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   t.Secure(c),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Extract returns the token from the cookie, falling back to the bearer
// header, or "" when neither carrier is present.
func Extract(c *fiber.Ctx) string {
	if token := c.Cookies(CookieName); token != "" {
		return token
	}
	return BearerToken(c.Get(fiber.HeaderAuthorization))
}

// BearerToken parses an Authorization header value; the scheme is case-insensitive.
func BearerToken(header string) string {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
