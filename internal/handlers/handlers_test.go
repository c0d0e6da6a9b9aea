package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/session"
)

const testSecret = "handler-test-secret"

// userStore keeps users keyed by id and enforces unique emails and subjects.
type userStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[uuid.UUID]models.User)}
}

func (s *userStore) find(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			u.Identities = append([]models.ExternalIdentity(nil), u.Identities...)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *userStore) FindByExternalID(_ context.Context, provider, subject string) (*models.User, error) {
	return s.find(func(u models.User) bool {
		for _, ident := range u.Identities {
			if ident.Provider == provider && ident.Subject == subject {
				return true
			}
		}
		return false
	})
}

func (s *userStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *userStore) save(user *models.User, isNew bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists == isNew {
		if isNew {
			return repository.ErrConflict
		}
		return repository.ErrNotFound
	}
	for id, u := range s.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email {
			return repository.ErrConflict
		}
		for _, a := range u.Identities {
			for _, b := range user.Identities {
				if a.Provider == b.Provider && a.Subject == b.Subject {
					return repository.ErrConflict
				}
			}
		}
	}
	for i := range user.Identities {
		if user.Identities[i].ID == uuid.Nil {
			user.Identities[i].ID = uuid.New()
			user.Identities[i].UserID = user.ID
		}
	}
	stored := *user
	stored.Identities = append([]models.ExternalIdentity(nil), user.Identities...)
	s.users[user.ID] = stored
	return nil
}

func (s *userStore) Insert(_ context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return s.save(user, true)
}

func (s *userStore) Update(_ context.Context, user *models.User) error {
	return s.save(user, false)
}

func newAuthService(store services.UserStore) *services.AuthService {
	return services.NewAuthService(store, services.NewBcryptHasher(bcrypt.MinCost),
		services.NewTokenIssuer(testSecret, services.SessionTTL), nil, nil)
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sessionCookie(resp *http.Response) *http.Cookie {
	return cookieNamed(resp, session.CookieName)
}

func do(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}
