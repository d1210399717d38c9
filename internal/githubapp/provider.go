// Package githubapp mints GitHub App credentials and hands out
// installation-scoped API clients. The App's RS256 JWT is exchanged
// for short-lived installation tokens which are cached and rotated
// ahead of expiry.
package githubapp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v68/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
)

// tokenRotationMargin is how far before expiry an installation token
// is refreshed. GitHub tokens live one hour; rotating early avoids a
// token expiring mid-request.
const tokenRotationMargin = 5 * time.Minute

// ClientProvider builds authenticated go-github clients per
// installation. Safe for concurrent use.
type ClientProvider struct {
	appID      int64
	privateKey *rsa.PrivateKey
	baseURL    string // empty for api.github.com

	mu      sync.Mutex
	clients map[int64]*github.Client
}

// NewClientProvider parses the App private key and returns a provider.
// baseURL overrides the API endpoint (GitHub Enterprise or tests); it
// may be empty.
func NewClientProvider(appID int64, privateKeyPEM []byte, baseURL string) (*ClientProvider, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("githubapp: parsing private key: %w", err)
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ClientProvider{
		appID:      appID,
		privateKey: key,
		baseURL:    baseURL,
		clients:    make(map[int64]*github.Client),
	}, nil
}

// appJWT signs a short-lived RS256 JWT identifying the App. Issued-at
// is backdated a minute to absorb clock skew between us and GitHub.
func (p *ClientProvider) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(p.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("githubapp: signing app JWT: %w", err)
	}
	return token, nil
}

// AppClient returns a client authenticated as the App itself (not an
// installation). A fresh JWT is minted per request.
func (p *ClientProvider) AppClient() *github.Client {
	client := github.NewClient(&http.Client{
		Transport: &appJWTTransport{provider: p, base: http.DefaultTransport},
	})
	p.applyBaseURL(client)
	return client
}

type appJWTTransport struct {
	provider *ClientProvider
	base     http.RoundTripper
}

func (t *appJWTTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.provider.appJWT()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// For returns the client for one installation, constructing it on
// first use. The transport stack, outermost first:
//  1. oauth2 (installation token, auto-rotated with margin)
//  2. go-github-ratelimit (sleeps through secondary rate limits)
//  3. httpcache (ETag conditional-request caching)
func (p *ClientProvider) For(ctx context.Context, installationID int64) (*github.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[installationID]; ok {
		return client, nil
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimited := github_ratelimit.NewClient(cacheTransport)
	source := &installationTokenSource{provider: p, installationID: installationID}

	httpCtx := context.WithValue(context.Background(), oauth2.HTTPClient, rateLimited)
	client := github.NewClient(oauth2.NewClient(httpCtx, source))
	p.applyBaseURL(client)

	p.clients[installationID] = client
	return client, nil
}

func (p *ClientProvider) applyBaseURL(client *github.Client) {
	if p.baseURL == "" {
		return
	}
	if u, err := url.Parse(p.baseURL); err == nil {
		client.BaseURL = u
	}
}

// exchange trades an app JWT for an installation access token.
func (p *ClientProvider) exchange(ctx context.Context, installationID int64) (string, time.Time, error) {
	token, _, err := p.AppClient().Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("githubapp: creating installation token: %w", err)
	}
	return token.GetToken(), token.GetExpiresAt().Time, nil
}

// installationTokenSource implements oauth2.TokenSource with a cached
// installation token rotated tokenRotationMargin before expiry.
type installationTokenSource struct {
	provider       *ClientProvider
	installationID int64

	mu    sync.Mutex
	token *oauth2.Token
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && time.Until(s.token.Expiry) > tokenRotationMargin {
		return s.token, nil
	}

	accessToken, expiry, err := s.provider.exchange(context.Background(), s.installationID)
	if err != nil {
		return nil, err
	}
	s.token = &oauth2.Token{AccessToken: accessToken, Expiry: expiry}
	return s.token, nil
}
