package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email address is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// MsgPasswordTooLong is reported as a validation failure, not a server error.
const MsgPasswordTooLong = "Password must be at most 72 bytes long"

// UserStore is the persistence contract the auth flows need.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByExternalID(ctx context.Context, provider, subject string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// Session is the outcome of any successful authentication.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users     UserStore
	hasher    PasswordHasher
	tokens    *TokenIssuer
	publisher events.Publisher
	metrics   *metrics.Auth
	dummyHash string
	now       func() time.Time
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens *TokenIssuer, publisher events.Publisher, m *metrics.Auth) *AuthService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	// Compared against on unknown emails so both login failures cost one hash check.
	dummy, err := hasher.Hash("ers-timing-equalizer-0")
	if err != nil {
		slog.Warn("failed to precompute dummy hash", "error", err)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		publisher: publisher,
		metrics:   m,
		dummyHash: dummy,
		now:       time.Now,
	}
}

func (s *AuthService) Tokens() *TokenIssuer {
	return s.tokens
}

// Register sanitizes and validates the submission, stores a new password
// account and opens a session for it. A duplicate email surfaces as
// ErrEmailTaken straight from the store's unique index.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*Session, error) {
	validation.Sanitize(&req)
	req, verrs := validation.Registration(req)
	if len(verrs) > 0 {
		s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeInvalid)
		return nil, verrs
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeInvalid)
			return nil, validation.Errors{MsgPasswordTooLong}
		}
		s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeError)
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		// No email confirmation exists; accounts start verified.
		Verified:  true,
		LastLogin: &now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeConflict)
			return nil, ErrEmailTaken
		}
		s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.establish(user)
	if err != nil {
		s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Observe(metrics.MethodRegister, metrics.OutcomeSuccess)
	s.publish(ctx, events.UserRegistered, user.ID, "")
	return session, nil
}

// Login returns ErrInvalidCredentials for both an unknown email and a wrong
// password so callers cannot tell them apart.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*Session, error) {
	validation.Sanitize(&req)
	req, verrs := validation.Login(req)
	if len(verrs) > 0 {
		s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeInvalid)
		return nil, verrs
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(req.Password, s.dummyHash)
			s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeInvalid)
			return nil, ErrInvalidCredentials
		}
		s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.HasPassword() {
		s.hasher.Verify(req.Password, s.dummyHash)
		s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	if err := s.touch(ctx, user); err != nil {
		s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeError)
		return nil, err
	}

	session, err := s.establish(user)
	if err != nil {
		s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Observe(metrics.MethodPassword, metrics.OutcomeSuccess)
	s.publish(ctx, events.UserLoggedIn, user.ID, "")
	return session, nil
}

// Authenticate verifies a raw session token and loads its user without the
// password hash.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		s.metrics.Observe(metrics.MethodToken, metrics.OutcomeInvalid)
		return nil, err
	}
	user, err := s.CurrentUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.Observe(metrics.MethodToken, metrics.OutcomeInvalid)
		} else {
			s.metrics.Observe(metrics.MethodToken, metrics.OutcomeError)
		}
		return nil, err
	}
	return user, nil
}

// CurrentUser loads a user by id with the password hash stripped.
func (s *AuthService) CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *AuthService) touch(ctx context.Context, user *models.User) error {
	now := s.now().UTC()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *AuthService) establish(user *models.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// publish is best effort; a broker outage must not fail authentication.
func (s *AuthService) publish(ctx context.Context, typ events.Type, userID uuid.UUID, provider string) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       typ,
		UserID:     userID.String(),
		Provider:   provider,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		slog.Warn("auth event publish failed", "action", string(typ), "user_id", userID.String(), "error", err)
	}
}

// ToUserResponse renders a user for API output. The hash never leaves here.
func ToUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Verified:  u.Verified,
		LastLogin: u.LastLogin,
		Providers: u.Providers(),
		CreatedAt: u.CreatedAt,
	}
}
