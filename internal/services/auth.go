package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ytpull/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

// LoadOAuthConfig reads a Google "installed app" client secrets file.
func LoadOAuthConfig(secretsPath, redirectURL string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(shared.ExpandPath(secretsPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: client secrets not found at %s", shared.ErrMissingCredentials, secretsPath)
		}
		return nil, fmt.Errorf("failed to read client secrets: %w", err)
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}
	return config, nil
}

// TokenStatus describes the cached token without refreshing it.
type TokenStatus struct {
	Path        string    `json:"path"`
	Present     bool      `json:"present"`
	Expiry      time.Time `json:"expiry,omitzero"`
	Expired     bool      `json:"expired"`
	Refreshable bool      `json:"refreshable"`
}

// OAuthProvider implements [AuthProvider] with a token cached on disk.
//
// Refreshed tokens are written back to the same file.
type OAuthProvider struct {
	config    *oauth2.Config
	tokenPath string
	revokeURL string
	client    *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// NewOAuthProvider creates a provider that caches its token at tokenPath.
func NewOAuthProvider(config *oauth2.Config, tokenPath string) *OAuthProvider {
	return &OAuthProvider{
		config:    config,
		tokenPath: shared.ExpandPath(tokenPath),
		revokeURL: googleRevokeURL,
		client:    http.DefaultClient,
	}
}

// Config returns the OAuth2 client configuration.
func (p *OAuthProvider) Config() *oauth2.Config { return p.config }

// TokenPath returns the location of the cached token.
func (p *OAuthProvider) TokenPath() string { return p.tokenPath }

// AuthCodeURL builds the consent URL. Offline access is requested so a refresh token is issued.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and caches it.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.save(token); err != nil {
		return nil, err
	}
	p.token = token
	return token, nil
}

// Token returns a valid access token, refreshing it when expired.
func (p *OAuthProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil {
		token, err := p.load()
		if err != nil {
			return nil, err
		}
		p.token = token
	}

	if p.token.Valid() {
		return p.token, nil
	}
	if p.token.RefreshToken == "" {
		return nil, &AuthError{Err: shared.ErrNoRefreshToken}
	}

	refreshed, err := p.config.TokenSource(ctx, p.token).Token()
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)}
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = p.token.RefreshToken
	}
	if err := p.save(refreshed); err != nil {
		return nil, err
	}
	p.token = refreshed
	return refreshed, nil
}

// Status reports on the cached token without contacting the provider.
func (p *OAuthProvider) Status() TokenStatus {
	status := TokenStatus{Path: p.tokenPath}

	token, err := p.load()
	if err != nil {
		return status
	}

	status.Present = true
	status.Expiry = token.Expiry
	status.Expired = !token.Valid()
	status.Refreshable = token.RefreshToken != ""
	return status
}

// Revoke invalidates the token with Google and removes the cached file.
//
// The file is removed even when the remote call fails.
func (p *OAuthProvider) Revoke(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	token, err := p.load()
	if err != nil {
		return err
	}

	var remoteErr error
	value := token.RefreshToken
	if value == "" {
		value = token.AccessToken
	}
	if value != "" {
		remoteErr = p.revokeRemote(ctx, value)
	}

	p.token = nil
	if err := os.Remove(p.tokenPath); err != nil && !os.IsNotExist(err) {
		return errors.Join(remoteErr, fmt.Errorf("failed to remove token file: %w", err))
	}
	return remoteErr
}

func (p *OAuthProvider) revokeRemote(ctx context.Context, value string) error {
	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: revoke: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: revoke returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}

func (p *OAuthProvider) load() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &AuthError{Err: shared.ErrNotAuthenticated}
		}
		return nil, &AuthError{Err: fmt.Errorf("failed to read token: %w", err)}
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("%w: token file is corrupt: %v", shared.ErrInvalidCredentials, err)}
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, &AuthError{Err: shared.ErrNotAuthenticated}
	}
	return &token, nil
}

func (p *OAuthProvider) save(token *oauth2.Token) error {
	data, err := shared.MarshalJSON(token, true)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.tokenPath), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := shared.WriteFileAtomic(p.tokenPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// TokenSource adapts an [AuthProvider] to [oauth2.TokenSource].
func TokenSource(ctx context.Context, auth AuthProvider) oauth2.TokenSource {
	return &providerSource{ctx: ctx, auth: auth}
}

type providerSource struct {
	ctx  context.Context
	auth AuthProvider
}

func (s *providerSource) Token() (*oauth2.Token, error) { return s.auth.Token(s.ctx) }
