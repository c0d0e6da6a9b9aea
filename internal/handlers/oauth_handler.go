package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/oauth"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/session"
)

const (
	stateCookie = "oauth_state"

	errOAuthFailed         = loginPath + "?error=oauth_failed"
	errOAuthCallbackFailed = loginPath + "?error=oauth_callback_failed"
)

// OAuthHandler drives the provider flows. A nil provider disables its routes.
type OAuthHandler struct {
	authService   *services.AuthService
	transport     *session.Transport
	google        oauth.RedirectProvider
	apple         oauth.TokenProvider
	states        oauth.StateStore
	loginRedirect string
}

func NewOAuthHandler(
	authService *services.AuthService,
	transport *session.Transport,
	google oauth.RedirectProvider,
	apple oauth.TokenProvider,
	states oauth.StateStore,
	loginRedirect string,
) *OAuthHandler {
	return &OAuthHandler{
		authService:   authService,
		transport:     transport,
		google:        google,
		apple:         apple,
		states:        states,
		loginRedirect: loginRedirect,
	}
}

// GoogleStart binds a fresh state to the browser (cookie) and, when a store
// is configured, to the server, then redirects to the consent screen.
func (h *OAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if h.google == nil {
		return fiber.ErrNotFound
	}

	state, err := oauth.NewState()
	if err != nil {
		slog.Error("oauth state generation failed", "provider", oauth.ProviderGoogle, "error", err)
		return c.Redirect(errOAuthFailed, fiber.StatusFound)
	}
	if h.states != nil {
		if err := h.states.Save(c.UserContext(), state, oauth.StateTTL); err != nil {
			slog.Error("oauth state save failed", "provider", oauth.ProviderGoogle, "error", err)
			return c.Redirect(errOAuthFailed, fiber.StatusFound)
		}
	}

	// Lax, not Strict: the cookie has to survive the cross-site redirect back.
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(oauth.StateTTL.Seconds()),
		Expires:  time.Now().Add(oauth.StateTTL),
		Secure:   h.transport.Secure(c),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.google.AuthCodeURL(state), fiber.StatusFound)
}

func (h *OAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	if h.google == nil {
		return fiber.ErrNotFound
	}

	state := c.Query("state")
	cookieState := c.Cookies(stateCookie)
	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	if c.Query("error") != "" || state == "" || state != cookieState {
		slog.Warn("oauth callback rejected", "provider", oauth.ProviderGoogle, "request_id", requestID(c))
		return c.Redirect(errOAuthFailed, fiber.StatusFound)
	}
	if h.states != nil {
		ok, err := h.states.Consume(c.UserContext(), state)
		if err != nil || !ok {
			slog.Warn("oauth state not redeemable", "provider", oauth.ProviderGoogle, "request_id", requestID(c), "error", err)
			return c.Redirect(errOAuthFailed, fiber.StatusFound)
		}
	}

	profile, err := h.google.Exchange(c.UserContext(), c.Query("code"))
	if err != nil {
		slog.Warn("google authentication failed", "provider", oauth.ProviderGoogle, "request_id", requestID(c), "error", err)
		return c.Redirect(errOAuthFailed, fiber.StatusFound)
	}

	sess, err := h.authService.ResolveExternal(c.UserContext(), profile)
	if err != nil {
		slog.Error("oauth identity resolution failed", "action", "oauth_callback", "provider", oauth.ProviderGoogle,
			"request_id", requestID(c), "error", err)
		return c.Redirect(errOAuthCallbackFailed, fiber.StatusFound)
	}

	h.transport.SetCookie(c, sess.Token)
	return c.Redirect(h.loginRedirect, fiber.StatusFound)
}

// AppleSignIn accepts an identity token from a native client and answers
// with JSON instead of redirects.
func (h *OAuthHandler) AppleSignIn(c *fiber.Ctx) error {
	if h.apple == nil {
		return fiber.ErrNotFound
	}

	var req dto.AppleSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.IdentityToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Identity token is required",
		})
	}

	profile, err := h.apple.VerifyIdentityToken(c.UserContext(), req.IdentityToken)
	if err != nil {
		slog.Warn("apple token verification failed", "provider", oauth.ProviderApple, "request_id", requestID(c), "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Apple sign in failed",
		})
	}
	profile.DisplayName = req.FullName

	sess, err := h.authService.ResolveExternal(c.UserContext(), profile)
	if err != nil {
		if errors.Is(err, services.ErrIdentityConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: "This account is already linked to a different Apple ID",
			})
		}
		slog.Error("oauth identity resolution failed", "action", "apple_sign_in", "provider", oauth.ProviderApple,
			"request_id", requestID(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Sign in failed. Please try again.",
		})
	}

	h.transport.SetCookie(c, sess.Token)
	return c.JSON(dto.AuthResponse{
		Success:    true,
		Message:    "Login successful",
		User:       services.ToUserResponse(sess.User),
		RedirectTo: h.loginRedirect,
	})
}
