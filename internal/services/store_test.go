package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/repository"
)

// memStore is an in-memory UserStore that enforces the same unique keys as
// the Postgres schema: email, (provider, subject) and (user, provider).
type memStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]models.User
	failErr error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]models.User)}
}

func clone(u models.User) *models.User {
	u.Identities = append([]models.ExternalIdentity(nil), u.Identities...)
	return &u
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) FindByExternalID(_ context.Context, provider, subject string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, u := range s.users {
		for _, ident := range u.Identities {
			if ident.Provider == provider && ident.Subject == subject {
				return clone(u), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (s *memStore) Insert(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for i := range user.Identities {
		if user.Identities[i].ID == uuid.Nil {
			user.Identities[i].ID = uuid.New()
		}
		user.Identities[i].UserID = user.ID
	}
	if err := s.checkUnique(*user); err != nil {
		return err
	}
	s.users[user.ID] = *clone(*user)
	return nil
}

func (s *memStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for i := range user.Identities {
		if user.Identities[i].ID == uuid.Nil {
			user.Identities[i].ID = uuid.New()
			user.Identities[i].UserID = user.ID
		}
	}
	if err := s.checkUnique(*user); err != nil {
		return err
	}
	s.users[user.ID] = *clone(*user)
	return nil
}

func (s *memStore) checkUnique(candidate models.User) error {
	seen := make(map[string]bool)
	for _, ident := range candidate.Identities {
		if seen[ident.Provider] {
			return repository.ErrConflict
		}
		seen[ident.Provider] = true
	}
	for id, u := range s.users {
		if id == candidate.ID {
			continue
		}
		if u.Email == candidate.Email {
			return repository.ErrConflict
		}
		for _, a := range u.Identities {
			for _, b := range candidate.Identities {
				if a.Provider == b.Provider && a.Subject == b.Subject {
					return repository.ErrConflict
				}
			}
		}
	}
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

var errStoreDown = errors.New("connection refused")

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
