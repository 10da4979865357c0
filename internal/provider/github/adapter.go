package github

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/waabox/devicelogin/internal/domain"
)

const defaultBaseURL = "https://api.github.com"

// Adapter implements domain.IdentityProvider for the GitHub REST API.
type Adapter struct {
	client *resty.Client
}

// Ensure Adapter implements IdentityProvider.
var _ domain.IdentityProvider = (*Adapter)(nil)

// NewAdapter creates a GitHub API adapter.
// baseURL is used for testing and GitHub Enterprise; pass empty string to use the real GitHub API.
// timeout bounds every request; zero keeps the 15 second default.
func NewAdapter(baseURL string, timeout time.Duration) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Adapter{client: client}
}

// CurrentUser returns the account the access token belongs to.
// Any non-200 answer is returned as *domain.TransportError; a 401 also matches domain.ErrUnauthorized.
func (a *Adapter) CurrentUser(ctx context.Context, accessToken string) (domain.Identity, error) {
	var u user
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "token "+accessToken).
		SetResult(&u).
		Get("/user")
	if err != nil {
		return domain.Identity{}, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return domain.Identity{}, &domain.TransportError{
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return u.toIdentity(), nil
}

// user is the raw GitHub API response shape for the authenticated user.
type user struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

func (u user) toIdentity() domain.Identity {
	return domain.Identity{
		ID:    u.ID,
		Login: u.Login,
		Name:  u.Name,
	}
}
