package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/validation"
)

var (
	// ErrIncompleteProfile means the provider did not supply subject and email.
	ErrIncompleteProfile = errors.New("external profile is missing subject or email")
	// ErrIdentityConflict means the email's account is already linked to a
	// different subject at the same provider, or a concurrent callback won.
	ErrIdentityConflict = errors.New("external identity conflicts with an existing account")
)

const maxNameLen = 50

// ResolveExternal maps a provider-verified profile onto a local account and
// opens a session:
//
//  1. an account already linked to (provider, subject) wins, even if the
//     profile's email has since changed;
//  2. otherwise an account with the same email gets the identity attached;
//  3. otherwise a new verified account without a password is created.
func (s *AuthService) ResolveExternal(ctx context.Context, profile *dto.ExternalProfile) (*Session, error) {
	if profile == nil || profile.Provider == "" || profile.ExternalID == "" || strings.TrimSpace(profile.Email) == "" {
		s.metrics.Observe(metrics.MethodOAuth, metrics.OutcomeInvalid)
		return nil, ErrIncompleteProfile
	}
	email := validation.NormalizeEmail(profile.Email)

	user, action, err := s.resolve(ctx, profile, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrIdentityConflict):
			s.metrics.Observe(metrics.MethodOAuth, metrics.OutcomeConflict)
		default:
			s.metrics.Observe(metrics.MethodOAuth, metrics.OutcomeError)
		}
		return nil, err
	}

	session, err := s.establish(user)
	if err != nil {
		s.metrics.Observe(metrics.MethodOAuth, metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Observe(metrics.MethodOAuth, metrics.OutcomeSuccess)
	if action == events.UserLinked {
		s.metrics.Linked(profile.Provider)
	}
	s.publish(ctx, action, user.ID, profile.Provider)
	return session, nil
}

func (s *AuthService) resolve(ctx context.Context, profile *dto.ExternalProfile, email string) (*models.User, events.Type, error) {
	user, err := s.users.FindByExternalID(ctx, profile.Provider, profile.ExternalID)
	switch {
	case err == nil:
		if err := s.touch(ctx, user); err != nil {
			return nil, "", err
		}
		return user, events.UserLoggedIn, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("failed to look up external identity: %w", err)
	}

	user, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.link(ctx, user, profile)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("failed to look up user by email: %w", err)
	}

	now := s.now().UTC()
	user = &models.User{
		Name:      displayName(profile.DisplayName, email),
		Email:     email,
		Verified:  true,
		LastLogin: &now,
		Identities: []models.ExternalIdentity{
			{Provider: profile.Provider, Subject: profile.ExternalID},
		},
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrIdentityConflict
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}
	return user, events.UserRegistered, nil
}

func (s *AuthService) link(ctx context.Context, user *models.User, profile *dto.ExternalProfile) (*models.User, events.Type, error) {
	switch existing := user.ExternalID(profile.Provider); {
	case existing == profile.ExternalID:
		// Linked by a concurrent callback between the two lookups.
		if err := s.touch(ctx, user); err != nil {
			return nil, "", err
		}
		return user, events.UserLoggedIn, nil
	case existing != "":
		return nil, "", ErrIdentityConflict
	}

	now := s.now().UTC()
	user.LastLogin = &now
	user.Identities = append(user.Identities, models.ExternalIdentity{
		Provider: profile.Provider,
		Subject:  profile.ExternalID,
	})
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrIdentityConflict
		}
		return nil, "", fmt.Errorf("failed to link identity: %w", err)
	}
	return user, events.UserLinked, nil
}

// displayName falls back to the email's local part, escapes markup the same
// way request input is escaped and clamps to the column size.
func displayName(name, email string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	name = validation.Escape(name)
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
		// Drop a character reference cut in half.
		if i := strings.LastIndexByte(name, '&'); i >= 0 && !strings.Contains(name[i:], ";") {
			name = name[:i]
		}
	}
	return name
}
