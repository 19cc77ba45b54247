// Package oauth exchanges Google authorization codes for user profiles.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/jobtrack/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleScopeProfile = "profile"
	googleScopeEmail   = "email"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	defaultTimeout = 10 * time.Second
)

// Profile is the subset of the Google userinfo document the service uses.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// GoogleConfig holds the configuration for the Google provider. RedirectURL
// must be the absolute callback URL registered with Google. The endpoint
// URLs default to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// GoogleProvider runs the server side of the authorization-code flow.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	client      *http.Client
}

func NewGoogle(c GoogleConfig) *GoogleProvider {
	endpoint := endpoints.Google
	if c.AuthURL != "" {
		endpoint.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := c.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{googleScopeProfile, googleScopeEmail},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		client:      &http.Client{Timeout: timeout},
	}
}

// AuthCodeURL builds the consent-screen URL the browser is redirected to.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for an access token.
func (g *GoogleProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", common.ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		perr := &ProviderError{Kind: common.ErrProviderExchange, Err: err}

		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			if rerr.Response != nil {
				perr.StatusCode = rerr.Response.StatusCode
			}
			perr.Code = rerr.ErrorCode
			perr.Description = rerr.ErrorDescription
		}
		return "", perr
	}

	return tok.AccessToken, nil
}

// FetchProfile loads the userinfo document for accessToken.
func (g *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return Profile{}, &ProviderError{Kind: common.ErrProviderProfile, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Profile{}, &ProviderError{Kind: common.ErrProviderProfile, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, &ProviderError{Kind: common.ErrProviderProfile, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Profile{}, &ProviderError{
			Kind:        common.ErrProviderProfile,
			StatusCode:  resp.StatusCode,
			Description: strings.TrimSpace(string(body)),
		}
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, &ProviderError{Kind: common.ErrProviderProfile, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode userinfo: %w", err)}
	}
	if p.Email == "" {
		return Profile{}, &ProviderError{Kind: common.ErrProviderProfile, StatusCode: resp.StatusCode, Description: "profile has no email"}
	}

	return p, nil
}
