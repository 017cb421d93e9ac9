package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotSignedIn = errors.New("backup: not signed in")
	ErrNoClientID  = errors.New("backup: sync.client_id is not configured")
)

// DefaultScopes grant read/write access to the signed-in user's files and a
// refresh token.
var DefaultScopes = []string{"offline_access", "openid", "profile", "Files.ReadWrite"}

// Credential is an opaque bearer credential for the remote provider.
type Credential struct {
	Account     string
	AccessToken string
}

type Identity interface {
	SignIn(ctx context.Context) (Credential, error)
	SignOut(ctx context.Context) error
	// AcquireTokenSilently returns a valid access token for account without
	// user interaction, refreshing it if needed. An empty account matches
	// whoever is signed in.
	AcquireTokenSilently(ctx context.Context, account string) (string, error)
}

type tokenCache struct {
	Account string        `json:"account"`
	Token   *oauth2.Token `json:"token"`
}

// MicrosoftIdentity signs in with the OAuth 2.0 device code flow and keeps
// the token in a JSON file.
type MicrosoftIdentity struct {
	oauth     *oauth2.Config
	cachePath string
	client    *http.Client
	prompt    func(userCode, verificationURI string)
	logger    *slog.Logger
	group     singleflight.Group
	mu        sync.Mutex
}

type IdentityOption func(*MicrosoftIdentity)

// WithEndpoint replaces the Microsoft identity platform endpoint.
func WithEndpoint(ep oauth2.Endpoint) IdentityOption {
	return func(m *MicrosoftIdentity) { m.oauth.Endpoint = ep }
}

func WithHTTPClient(c *http.Client) IdentityOption {
	return func(m *MicrosoftIdentity) { m.client = c }
}

// WithPrompt sets how the device code is shown to the user.
func WithPrompt(fn func(userCode, verificationURI string)) IdentityOption {
	return func(m *MicrosoftIdentity) {
		if fn != nil {
			m.prompt = fn
		}
	}
}

func WithIdentityLogger(logger *slog.Logger) IdentityOption {
	return func(m *MicrosoftIdentity) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMicrosoftIdentity(clientID, tenant, cachePath string, opts ...IdentityOption) (*MicrosoftIdentity, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrNoClientID
	}
	if tenant == "" {
		tenant = "common"
	}
	m := &MicrosoftIdentity{
		oauth: &oauth2.Config{
			ClientID: clientID,
			Endpoint: microsoft.AzureADEndpoint(tenant),
			Scopes:   DefaultScopes,
		},
		cachePath: cachePath,
		logger:    slog.Default(),
		prompt: func(code, uri string) {
			fmt.Fprintf(os.Stderr, "To sign in, open %s and enter the code %s\n", uri, code)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *MicrosoftIdentity) context(ctx context.Context) context.Context {
	if m.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

func (m *MicrosoftIdentity) SignIn(ctx context.Context) (Credential, error) {
	ctx = m.context(ctx)
	auth, err := m.oauth.DeviceAuth(ctx)
	if err != nil {
		return Credential{}, fmt.Errorf("request device code: %w", err)
	}
	m.prompt(auth.UserCode, auth.VerificationURI)

	tok, err := m.oauth.DeviceAccessToken(ctx, auth)
	if err != nil {
		return Credential{}, fmt.Errorf("wait for sign-in: %w", err)
	}
	account := accountFromIDToken(tok)
	if err := m.save(tokenCache{Account: account, Token: tok}); err != nil {
		return Credential{}, err
	}
	m.logger.Info("signed in", "account", account)
	return Credential{Account: account, AccessToken: tok.AccessToken}, nil
}

func (m *MicrosoftIdentity) SignOut(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(m.cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	m.logger.Info("signed out")
	return nil
}

// Account returns the signed-in account name.
func (m *MicrosoftIdentity) Account() (string, error) {
	cache, err := m.load()
	if err != nil {
		return "", err
	}
	return cache.Account, nil
}

func (m *MicrosoftIdentity) AcquireTokenSilently(ctx context.Context, account string) (string, error) {
	v, err, _ := m.group.Do("token:"+account, func() (any, error) {
		cache, err := m.load()
		if err != nil {
			return "", err
		}
		if account != "" && !strings.EqualFold(cache.Account, account) {
			return "", fmt.Errorf("%w as %s", ErrNotSignedIn, account)
		}
		tok, err := m.oauth.TokenSource(m.context(ctx), cache.Token).Token()
		if err != nil {
			return "", fmt.Errorf("refresh token: %w", err)
		}
		if tok.AccessToken != cache.Token.AccessToken {
			cache.Token = tok
			if err := m.save(cache); err != nil {
				return "", err
			}
			m.logger.Debug("access token refreshed", "account", cache.Account, "expiry", tok.Expiry)
		}
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *MicrosoftIdentity) load() (tokenCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := os.ReadFile(m.cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tokenCache{}, ErrNotSignedIn
		}
		return tokenCache{}, fmt.Errorf("read token cache: %w", err)
	}
	var cache tokenCache
	if err := json.Unmarshal(raw, &cache); err != nil {
		return tokenCache{}, fmt.Errorf("decode token cache: %w", err)
	}
	if cache.Token == nil {
		return tokenCache{}, ErrNotSignedIn
	}
	return cache, nil
}

func (m *MicrosoftIdentity) save(cache tokenCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dir := filepath.Dir(m.cachePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token cache dir: %w", err)
		}
	}
	payload, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}
	tmp := m.cachePath + ".tmp"
	if err := os.WriteFile(tmp, append(payload, '\n'), 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return os.Rename(tmp, m.cachePath)
}

// accountFromIDToken reads preferred_username from the unverified id_token
// claims. The value is only used as a label.
func accountFromIDToken(tok *oauth2.Token) string {
	raw, _ := tok.Extra("id_token").(string)
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return "default"
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "default"
	}
	for _, claim := range []string{"preferred_username", "email", "name"} {
		if v := gjson.GetBytes(payload, claim).String(); v != "" {
			return v
		}
	}
	return "default"
}
