// Package auth exchanges Google service account assertions for short-lived
// bearer tokens and caches them per scope set.
package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jws"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/seo-pilot/internal/clock/system"
	"github.com/JakeFAU/seo-pilot/internal/httpclient"
	"github.com/JakeFAU/seo-pilot/internal/retry"
)

const (
	// TokenURL is Google's OAuth 2.0 token endpoint and the assertion audience.
	TokenURL = "https://oauth2.googleapis.com/token"
	// ScopeIndexing grants access to the Indexing API.
	ScopeIndexing = "https://www.googleapis.com/auth/indexing"
	// ScopeWebmasters grants access to Search Console.
	ScopeWebmasters = "https://www.googleapis.com/auth/webmasters"

	grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// refreshWindow is how close to expiry a cached token is considered stale.
	refreshWindow = 60 * time.Second
	assertionTTL  = time.Hour
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ServiceAccount is the subset of a service account key file used for signing.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Token is a cached bearer token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Cache holds tokens keyed by scope string for the lifetime of a Client.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Token
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Token)}
}

// Get returns the token for key if more than the refresh window remains at now.
func (c *Cache) Get(key string, now time.Time) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.entries[key]
	if !ok || tok.ExpiresAt.Sub(now) <= refreshWindow {
		return Token{}, false
	}
	return tok, true
}

// Put stores tok under key.
func (c *Cache) Put(key string, tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tok
}

// Client mints access tokens.
type Client struct {
	http     *resty.Client
	logger   *zap.Logger
	cache    *Cache
	clock    Clock
	tokenURL string
	policy   retry.Policy
	group    singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithPolicy overrides the retry policy for token exchanges.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// New builds a Client with its own token cache.
func New(httpClient *resty.Client, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http:   httpClient,
		logger: logger,
		cache:  NewCache(),
		clock:  system.New(),
		policy: retry.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessToken returns a bearer token for scopes, minting one when the
// cached token is missing or within a minute of expiry. Concurrent callers
// asking for the same scopes share a single exchange.
func (c *Client) AccessToken(ctx context.Context, serviceAccountPath string, scopes []string) (string, error) {
	tok, err := c.token(ctx, serviceAccountPath, scopes)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (c *Client) token(ctx context.Context, serviceAccountPath string, scopes []string) (Token, error) {
	key := strings.Join(scopes, " ")
	if tok, ok := c.cache.Get(key, c.clock.Now()); ok {
		return tok, nil
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		if tok, ok := c.cache.Get(key, c.clock.Now()); ok {
			return tok, nil
		}
		tok, err := c.exchange(ctx, serviceAccountPath, key)
		if err != nil {
			return Token{}, err
		}
		c.cache.Put(key, tok)
		return tok, nil
	})
	if err != nil {
		return Token{}, err
	}
	if shared {
		c.logger.Debug("shared token exchange", zap.String("scope", key))
	}
	return v.(Token), nil
}

// TokenSource adapts the client to oauth2.TokenSource for generated Google clients.
func (c *Client) TokenSource(ctx context.Context, serviceAccountPath string, scopes []string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c, path: serviceAccountPath, scopes: scopes}
}

type tokenSource struct {
	ctx    context.Context
	client *Client
	path   string
	scopes []string
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.client.token(ts.ctx, ts.path, ts.scopes)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.AccessToken, TokenType: "Bearer", Expiry: tok.ExpiresAt}, nil
}

// LoadServiceAccount reads and validates a service account key file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	// #nosec G304 -- path comes from the operator's config.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ServiceAccount{}, fmt.Errorf("Service account file not found: %s", path) //nolint:staticcheck // user-facing message
		}
		return ServiceAccount{}, fmt.Errorf("read service account: %w", err)
	}
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return ServiceAccount{}, fmt.Errorf("Invalid JSON in service account file: %s", path) //nolint:staticcheck // user-facing message
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return ServiceAccount{}, fmt.Errorf("service account file %s is missing client_email or private_key", path)
	}
	return sa, nil
}

func (c *Client) exchange(ctx context.Context, serviceAccountPath, scope string) (Token, error) {
	sa, err := LoadServiceAccount(serviceAccountPath)
	if err != nil {
		return Token{}, err
	}
	key, err := parsePrivateKey(sa.PrivateKey)
	if err != nil {
		return Token{}, err
	}

	tokenURL := c.tokenURL
	if tokenURL == "" {
		tokenURL = sa.TokenURI
	}
	if tokenURL == "" {
		tokenURL = TokenURL
	}

	now := c.clock.Now()
	claims := &jws.ClaimSet{
		Iss:   sa.ClientEmail,
		Scope: scope,
		Aud:   TokenURL,
		Iat:   now.Unix(),
		Exp:   now.Add(assertionTTL).Unix(),
	}
	assertion, err := jws.Encode(&jws.Header{Algorithm: "RS256", Typ: "JWT"}, claims, key)
	if err != nil {
		return Token{}, fmt.Errorf("sign assertion: %w", err)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	_, err = retry.Do(ctx, c.policy, func(ctx context.Context) (*resty.Response, error) {
		res, err := c.http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"grant_type": grantType,
				"assertion":  assertion,
			}).
			Post(tokenURL)
		if err != nil {
			return nil, fmt.Errorf("token request: %w", err)
		}
		if err := httpclient.CheckStatus(res); err != nil {
			return res, fmt.Errorf("Failed to get access token: %w", err) //nolint:staticcheck // user-facing message
		}
		if err := json.Unmarshal(res.Body(), &body); err != nil {
			return res, fmt.Errorf("decode token response: %w", err)
		}
		return res, nil
	})
	if err != nil {
		return Token{}, err
	}
	if body.AccessToken == "" {
		return Token{}, errors.New("token response has no access_token")
	}
	expiresIn := time.Duration(body.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = assertionTTL
	}
	c.logger.Debug("minted access token", zap.String("scope", scope), zap.Duration("expires_in", expiresIn))
	return Token{AccessToken: body.AccessToken, ExpiresAt: now.Add(expiresIn)}, nil
}

func parsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, errors.New("private_key is not PEM encoded")
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private_key is not an RSA key")
		}
		return key, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private_key: %w", err)
	}
	return key, nil
}
