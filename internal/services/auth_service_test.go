package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/validation"
)

type testEnv struct {
	svc       *AuthService
	store     *memStore
	publisher *recordingPublisher
	metrics   *metrics.Auth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	m := metrics.NewAuth(prometheus.NewRegistry())
	svc := NewAuthService(store, NewBcryptHasher(bcrypt.MinCost), NewTokenIssuer(testSecret, SessionTTL), pub, m)
	return &testEnv{svc: svc, store: store, publisher: pub, metrics: m}
}

func registration(email string) dto.RegisterRequest {
	return dto.RegisterRequest{
		Name:            "Ada Lovelace",
		Email:           email,
		Password:        "abcd1234",
		ConfirmPassword: "abcd1234",
	}
}

func (e *testEnv) attempts(method, outcome string) float64 {
	return testutil.ToFloat64(e.metrics.Attempts.WithLabelValues(method, outcome))
}

func (e *testEnv) links(provider string) float64 {
	return testutil.ToFloat64(e.metrics.Links.WithLabelValues(provider))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates verified account and session", func(t *testing.T) {
		env := newTestEnv(t)
		session, err := env.svc.Register(ctx, registration(" Ada@Example.com "))
		require.NoError(t, err)

		user := session.User
		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.Equal(t, "Ada Lovelace", user.Name)
		assert.True(t, user.Verified)
		assert.NotNil(t, user.LastLogin)
		assert.NotEqual(t, "abcd1234", user.PasswordHash)
		assert.True(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("abcd1234")) == nil)

		sub, err := env.svc.Tokens().Verify(session.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, sub)

		assert.Equal(t, []events.Type{events.UserRegistered}, env.publisher.types())
		assert.Equal(t, 1.0, env.attempts(metrics.MethodRegister, metrics.OutcomeSuccess))
	})

	t.Run("duplicate email differing only in case and whitespace", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Register(ctx, registration("A@x.com"))
		require.NoError(t, err)

		_, err = env.svc.Register(ctx, registration("a@x.com "))
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.Equal(t, 1, env.store.count())
		assert.Equal(t, 1.0, env.attempts(metrics.MethodRegister, metrics.OutcomeConflict))
	})

	t.Run("validation failures are returned together", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Register(ctx, dto.RegisterRequest{Name: "A", Email: "bad", Password: "short"})

		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, validation.Errors{
			validation.MsgName, validation.MsgEmail, validation.MsgPassword, validation.MsgPasswordMatch,
		}, verrs)
		assert.Zero(t, env.store.count())
	})

	t.Run("markup in name is escaped before validation", func(t *testing.T) {
		env := newTestEnv(t)
		req := registration("a@x.com")
		req.Name = "<script>"
		_, err := env.svc.Register(ctx, req)

		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, validation.MsgName)
	})

	t.Run("password longer than 72 bytes", func(t *testing.T) {
		env := newTestEnv(t)
		req := registration("a@x.com")
		req.Password = "a1" + strings.Repeat("x", 71)
		req.ConfirmPassword = req.Password
		_, err := env.svc.Register(ctx, req)
		assert.Equal(t, validation.Errors{MsgPasswordTooLong}, err)
	})

	t.Run("store failure is not a conflict", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.failErr = errStoreDown
		_, err := env.svc.Register(ctx, registration("a@x.com"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmailTaken)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	env := newTestEnv(t)
	const n = 8

	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := "race@x.com"
			if i%2 == 1 {
				email = " RACE@x.com"
			}
			_, results[i] = env.svc.Register(context.Background(), registration(email))
		}(i)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrEmailTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, taken)
	assert.Equal(t, 1, env.store.count())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		env := newTestEnv(t)
		reg, err := env.svc.Register(ctx, registration("a@x.com"))
		require.NoError(t, err)

		session, err := env.svc.Login(ctx, dto.LoginRequest{Email: "A@X.com ", Password: "abcd1234"})
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, session.User.ID)
		require.NotNil(t, session.User.LastLogin)

		sub, err := env.svc.Tokens().Verify(session.Token)
		require.NoError(t, err)
		assert.Equal(t, reg.User.ID, sub)
		assert.Equal(t, []events.Type{events.UserRegistered, events.UserLoggedIn}, env.publisher.types())
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Register(ctx, registration("a@x.com"))
		require.NoError(t, err)

		_, wrongPass := env.svc.Login(ctx, dto.LoginRequest{Email: "a@x.com", Password: "nope1234"})
		_, unknown := env.svc.Login(ctx, dto.LoginRequest{Email: "b@x.com", Password: "abcd1234"})

		assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
		assert.ErrorIs(t, unknown, ErrInvalidCredentials)
		assert.Equal(t, wrongPass.Error(), unknown.Error())
		assert.Equal(t, 2.0, env.attempts(metrics.MethodPassword, metrics.OutcomeInvalid))
	})

	t.Run("account without password", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.Insert(ctx, &models.User{
			Name:       "Oauth Only",
			Email:      "o@x.com",
			Verified:   true,
			Identities: []models.ExternalIdentity{{Provider: "google", Subject: "g-1"}},
		}))

		_, err := env.svc.Login(ctx, dto.LoginRequest{Email: "o@x.com", Password: "anything1"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("policy is not re-applied at login", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Login(ctx, dto.LoginRequest{Email: "a@x.com", Password: "x"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("malformed input", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Login(ctx, dto.LoginRequest{Email: "nope"})
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, validation.Errors{validation.MsgEmail, validation.MsgPasswordMissing}, verrs)
	})

	t.Run("store outage is not reported as bad credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.failErr = errStoreDown
		_, err := env.svc.Login(ctx, dto.LoginRequest{Email: "a@x.com", Password: "abcd1234"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("publish failure does not fail login", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Register(ctx, registration("a@x.com"))
		require.NoError(t, err)
		env.publisher.err = errors.New("broker down")

		_, err = env.svc.Login(ctx, dto.LoginRequest{Email: "a@x.com", Password: "abcd1234"})
		assert.NoError(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	session, err := env.svc.Register(ctx, registration("a@x.com"))
	require.NoError(t, err)

	t.Run("valid token loads user without hash", func(t *testing.T) {
		user, err := env.svc.Authenticate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, user.ID)
		assert.Empty(t, user.PasswordHash)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, err := env.svc.Authenticate(ctx, session.Token+"x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token for a missing user", func(t *testing.T) {
		raw, _, err := env.svc.Tokens().Issue(uuid.New())
		require.NoError(t, err)
		_, err = env.svc.Authenticate(ctx, raw)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestToUserResponse(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Ada",
		Email:        "a@x.com",
		PasswordHash: "secret-hash",
		Identities:   []models.ExternalIdentity{{Provider: "google", Subject: "g-1"}},
	}
	resp := ToUserResponse(user)
	assert.Equal(t, user.ID, resp.ID)
	assert.Equal(t, []string{"google"}, resp.Providers)
}
