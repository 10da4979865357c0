package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/waabox/devicelogin/internal/domain"
)

const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// maxResponseBody bounds how much of a token endpoint response is read.
const maxResponseBody = 1 << 20

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a GitHubDeviceFlow.
type Option func(*GitHubDeviceFlow)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *GitHubDeviceFlow) { f.client = c }
}

// WithSleeper replaces the wait between polls. Tests use it to skip real sleeping.
func WithSleeper(s Sleeper) Option {
	return func(f *GitHubDeviceFlow) { f.sleep = s }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(f *GitHubDeviceFlow) { f.now = now }
}

// WithMaxInterval caps the polling interval in seconds. Zero disables the cap.
func WithMaxInterval(seconds int) Option {
	return func(f *GitHubDeviceFlow) { f.maxInterval = seconds }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(f *GitHubDeviceFlow) { f.log = log }
}

// GitHubDeviceFlow implements the OAuth 2.0 Device Authorization Flow for GitHub.
// See https://docs.github.com/en/apps/oauth-apps/building-oauth-apps/authorizing-oauth-apps#device-flow
type GitHubDeviceFlow struct {
	clientID    string
	scope       string
	baseURL     string
	maxInterval int
	client      *http.Client
	sleep       Sleeper
	now         func() time.Time
	log         *zap.SugaredLogger
}

// NewGitHubDeviceFlow creates a GitHubDeviceFlow.
// scope is a space-delimited list; empty requests the minimal default permissions.
// Pass an empty baseURL to use github.com. Pass a test server URL in tests.
func NewGitHubDeviceFlow(clientID, scope, baseURL string, opts ...Option) *GitHubDeviceFlow {
	f := &GitHubDeviceFlow{
		clientID: clientID,
		scope:    scope,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		sleep:    sleepContext,
		now:      time.Now,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *GitHubDeviceFlow) endpoint() (oauth2.Endpoint, error) {
	if f.baseURL == "" {
		return github.Endpoint, nil
	}
	deviceURL, err := url.JoinPath(f.baseURL, "/login/device/code")
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("building URL: %w", err)
	}
	tokenURL, err := url.JoinPath(f.baseURL, "/login/oauth/access_token")
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("building URL: %w", err)
	}
	return oauth2.Endpoint{DeviceAuthURL: deviceURL, TokenURL: tokenURL}, nil
}

// RequestCode requests a device code and user code from GitHub.
// The returned DeviceCodeResponse.UserCode must be shown to the user along with VerificationURI.
// A non-2xx answer is returned as *domain.TransportError and is never retried.
func (f *GitHubDeviceFlow) RequestCode(ctx context.Context) (DeviceCodeResponse, error) {
	endpoint, err := f.endpoint()
	if err != nil {
		return DeviceCodeResponse{}, err
	}
	cfg := oauth2.Config{
		ClientID: f.clientID,
		Endpoint: endpoint,
	}

	// scope is always sent, empty when no scopes were asked for.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	da, err := cfg.DeviceAuth(ctx, oauth2.SetAuthURLParam("scope", strings.Join(strings.Fields(f.scope), " ")))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return DeviceCodeResponse{}, &domain.TransportError{
				Op:         "failed to request device code",
				StatusCode: rerr.Response.StatusCode,
				Body:       string(rerr.Body),
			}
		}
		return DeviceCodeResponse{}, fmt.Errorf("requesting device code: %w", err)
	}
	if da.DeviceCode == "" || da.UserCode == "" {
		return DeviceCodeResponse{}, errors.New("device code response is missing device_code or user_code")
	}

	interval := int(da.Interval)
	if interval <= 0 {
		interval = defaultInterval
	}
	f.log.Debugw("device code issued", "verification_uri", da.VerificationURI, "interval", interval, "expiry", da.Expiry)
	return DeviceCodeResponse{
		DeviceCode:              da.DeviceCode,
		UserCode:                da.UserCode,
		VerificationURI:         da.VerificationURI,
		VerificationURIComplete: da.VerificationURIComplete,
		Expiry:                  da.Expiry,
		Interval:                interval,
	}, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
	Interval         int    `json:"interval"`
}

// PollToken polls the GitHub token endpoint until an access token is granted or an error occurs.
// It sleeps for the code's interval before every request, backs off on slow_down and gives up
// with domain.ErrFlowExpired once the code expires, locally or as reported by GitHub.
// ctx cancels the loop at the sleep boundary.
func (f *GitHubDeviceFlow) PollToken(ctx context.Context, code DeviceCodeResponse) (*oauth2.Token, error) {
	endpoint, err := f.endpoint()
	if err != nil {
		return nil, err
	}

	interval := code.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	for attempt := 1; ; attempt++ {
		if f.expired(code) {
			return nil, domain.ErrFlowExpired
		}
		if err := f.sleep(ctx, time.Duration(interval)*time.Second); err != nil {
			return nil, err
		}
		// The code may have expired while sleeping.
		if f.expired(code) {
			return nil, domain.ErrFlowExpired
		}

		raw, err := f.exchange(ctx, endpoint.TokenURL, code.DeviceCode)
		if err != nil {
			return nil, err
		}

		switch raw.Error {
		case "":
			if raw.AccessToken == "" {
				return nil, &domain.ProviderError{
					Code:        "missing_access_token",
					Description: "token response carried neither an error nor an access token",
				}
			}
			f.log.Debugw("access token granted", "attempt", attempt, "scope", raw.Scope)
			token := &oauth2.Token{AccessToken: raw.AccessToken, TokenType: raw.TokenType}
			return token.WithExtra(map[string]interface{}{"scope": raw.Scope}), nil
		case "authorization_pending":
			f.log.Debugw("authorization pending", "attempt", attempt, "interval", interval)
		case "slow_down":
			interval = f.slowDown(interval, raw.Interval)
			f.log.Infow("provider asked to slow down", "attempt", attempt, "interval", interval)
		case "expired_token":
			return nil, domain.ErrFlowExpired
		default:
			return nil, &domain.ProviderError{
				Code:        raw.Error,
				Description: raw.ErrorDescription,
				URI:         raw.ErrorURI,
			}
		}
	}
}

func (f *GitHubDeviceFlow) expired(code DeviceCodeResponse) bool {
	return !code.Expiry.IsZero() && !f.now().Before(code.Expiry)
}

// slowDown returns the next interval after a slow_down response. The interval never shrinks,
// honours an interval sent by the provider and otherwise stays within maxInterval.
// Once the cap is reached a slow_down leaves the interval where it is.
func (f *GitHubDeviceFlow) slowDown(interval, requested int) int {
	next := interval + slowDownIncrement
	if requested > next {
		next = requested
	}
	if f.maxInterval > 0 && next > f.maxInterval {
		next = max(f.maxInterval, requested, interval)
	}
	return next
}

func (f *GitHubDeviceFlow) exchange(ctx context.Context, tokenURL, deviceCode string) (tokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", f.clientID)
	data.Set("device_code", deviceCode)
	data.Set("grant_type", deviceCodeGrantType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("polling for access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tokenResponse{}, &domain.TransportError{
			Op:         "failed to poll for access token",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var raw tokenResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return tokenResponse{}, fmt.Errorf("decoding token response: %w", err)
	}
	return raw, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
