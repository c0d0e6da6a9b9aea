package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and UserInfoURL default to Google's production endpoints.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

type googleUserInfo struct {
	Sub           string      `json:"sub"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
}

func NewGoogle(c GoogleConfig) *Google {
	endpoint := c.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := c.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

func (g *Google) Name() string { return ProviderGoogle }

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (g *Google) Exchange(ctx context.Context, code string) (*dto.ExternalProfile, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrUpstreamAuth)
	}

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrUpstreamAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	resp, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned status %d", ErrUpstreamAuth, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", ErrUpstreamAuth, err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing sub or email", ErrUpstreamAuth)
	}
	if !emailVerified(info.EmailVerified) {
		return nil, fmt.Errorf("%w: email not verified", ErrUpstreamAuth)
	}

	return &dto.ExternalProfile{
		Provider:    ProviderGoogle,
		ExternalID:  info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
