package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/session"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/validation"
)

const loginPath = "/auth/login"

type AuthHandler struct {
	authService   *services.AuthService
	transport     *session.Transport
	providers     []string
	loginRedirect string
}

func NewAuthHandler(authService *services.AuthService, transport *session.Transport, loginRedirect string, providers ...string) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		transport:     transport,
		providers:     providers,
		loginRedirect: loginRedirect,
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

func validationFailed(c *fiber.Ctx, errs validation.Errors) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Validation failed", Details: errs,
	})
}

func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	return c.JSON(dto.EntryPageResponse{
		Title:     "Login - Emergency Response System",
		Providers: h.providers,
		Error:     c.Query("error"),
	})
}

func (h *AuthHandler) RegisterPage(c *fiber.Ctx) error {
	return c.JSON(dto.EntryPageResponse{
		Title:     "Register - Emergency Response System",
		Providers: h.providers,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	sess, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return validationFailed(c, verrs)
		case errors.Is(err, services.ErrEmailTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: true, Message: "Email address is already registered",
			})
		}
		slog.Error("registration failed", "action", "register", "request_id", requestID(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Registration failed. Please try again.",
		})
	}

	h.transport.SetCookie(c, sess.Token)
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{
		Success:    true,
		Message:    "Registration successful",
		User:       services.ToUserResponse(sess.User),
		RedirectTo: h.loginRedirect,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	sess, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			return validationFailed(c, verrs)
		case errors.Is(err, services.ErrInvalidCredentials):
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid email or password",
			})
		}
		slog.Error("login failed", "action", "login", "request_id", requestID(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Login failed. Please try again.",
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

// Logout only clears the carrier; issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.transport.ClearCookie(c)
	return c.JSON(dto.MessageResponse{
		Success:    true,
		Message:    "Logout successful",
		RedirectTo: loginPath,
	})
}

func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user, err := identity.Current(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	return c.JSON(dto.ProfileResponse{
		Success: true,
		User:    services.ToUserResponse(user),
	})
}
