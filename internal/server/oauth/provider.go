// Package oauth implements the authorization code flow (with PKCE) against
// Google and GitHub and turns the result into a federated profile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ErrExchange wraps failures talking to the provider: bad code, revoked
// consent, provider outage.
var ErrExchange = errors.New("oauth exchange failed")

// Credentials are the client registration at the provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Provider struct {
	name    models.Provider
	config  *oauth2.Config
	apiBase string
	profile func(ctx context.Context, p *Provider, client *http.Client) (services.FederatedProfile, error)
}

type Option func(*Provider)

// WithEndpoint overrides the provider's authorization and token URLs.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.config.Endpoint = e
	}
}

// WithAPIBase overrides the base URL of the profile API.
func WithAPIBase(u string) Option {
	return func(p *Provider) {
		p.apiBase = u
	}
}

func newProvider(name models.Provider, c Credentials, e oauth2.Endpoint, scopes []string, apiBase string,
	profile func(context.Context, *Provider, *http.Client) (services.FederatedProfile, error), opts []Option) *Provider {
	p := &Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint:     e,
			Scopes:       scopes,
		},
		apiBase: apiBase,
		profile: profile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewGoogle configures Google sign-in with the profile and email scopes.
func NewGoogle(c Credentials, opts ...Option) *Provider {
	return newProvider(models.ProviderGoogle, c, endpoints.Google, []string{"profile", "email"},
		"https://www.googleapis.com", googleProfile, opts)
}

// NewGitHub configures GitHub sign-in with the user:email scope.
func NewGitHub(c Credentials, opts ...Option) *Provider {
	return newProvider(models.ProviderGitHub, c, endpoints.GitHub, []string{"user:email"},
		"https://api.github.com", githubProfile, opts)
}

func (p *Provider) Name() models.Provider { return p.name }

// Enabled reports whether client credentials are configured.
func (p *Provider) Enabled() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// NewVerifier returns a fresh random value usable as PKCE verifier or state.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL is where the browser is sent to consent.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Resolve exchanges an authorization code and fetches the caller's profile.
func (p *Provider) Resolve(ctx context.Context, code, verifier string) (services.FederatedProfile, error) {
	tok, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return services.FederatedProfile{}, fmt.Errorf("%w: %s token exchange: %v", ErrExchange, p.name, err)
	}
	return p.profile(ctx, p, p.config.Client(ctx, tok))
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned status %d", ErrExchange, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrExchange, url, err)
	}
	return nil
}
