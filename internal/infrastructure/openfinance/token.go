package openfinance

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"agrego/internal/shared/logger"
)

const (
	// expiryBuffer is subtracted from every declared token lifetime so
	// a token is refreshed before the provider rejects it mid-request.
	expiryBuffer = 5 * time.Minute

	defaultAPIKeyTTL       = 2 * time.Hour
	defaultConnectTokenTTL = 30 * time.Minute
)

// TokenManager exchanges a client id/secret pair for the two short-lived
// provider tokens: the broad API key used for data pulls, and the
// narrow connect token handed to the client-side linking widget.
//
// Token state is owned by one instance; construct one manager per
// user/session so tokens never bleed across tenants.
type TokenManager struct {
	transport    *Transport
	clientID     string
	clientSecret string

	apiKeyTTL       time.Duration
	connectTokenTTL time.Duration

	mu               sync.Mutex
	apiKey           string
	apiKeyExpiry     time.Time
	connectToken     string
	connectExpiry    time.Time
	now              func() time.Time
}

// NewTokenManager validates the credential pair and returns a manager.
// Malformed input fails fast with ErrInvalidCredentials before any
// network call: the client id must be a UUID and the secret non-empty.
func NewTokenManager(transport *Transport, clientID, clientSecret string) (*TokenManager, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", ErrInvalidCredentials)
	}
	if _, err := uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("%w: client id is not a UUID", ErrInvalidCredentials)
	}

	return &TokenManager{
		transport:       transport,
		clientID:        clientID,
		clientSecret:    clientSecret,
		apiKeyTTL:       defaultAPIKeyTTL,
		connectTokenTTL: defaultConnectTokenTTL,
		now:             time.Now,
	}, nil
}

// APIKey returns a broad-access token, re-authenticating when the
// cached one is inside the expiry buffer.
func (m *TokenManager) APIKey(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.apiKey != "" && m.now().Before(m.apiKeyExpiry) {
		return m.apiKey, nil
	}
	if err := m.authenticate(ctx); err != nil {
		return "", err
	}
	return m.apiKey, nil
}

// authenticate exchanges the credentials for a fresh API key.
// Callers must hold m.mu.
func (m *TokenManager) authenticate(ctx context.Context) error {
	var resp authResponse
	err := m.transport.Request(ctx, http.MethodPost, "/auth", nil, nil, authRequest{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
	}, &resp)
	if err != nil {
		return fmt.Errorf("auth exchange failed: %w", err)
	}
	if resp.APIKey == "" {
		return &ParseError{Reason: "auth response missing apiKey"}
	}

	ttl := m.apiKeyTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}

	m.apiKey = resp.APIKey
	m.apiKeyExpiry = m.now().Add(ttl - expiryBuffer)
	logger.Get().Debugw("provider API key refreshed", "expires_at", m.apiKeyExpiry)
	return nil
}

// ConnectToken returns a narrow-scoped token for the linking widget.
// It is obtained with the broad token and never used for data pulls.
// Unscoped tokens are cached; tokens bound to an item are not.
func (m *TokenManager) ConnectToken(ctx context.Context, itemID string, opts ConnectTokenOptions) (string, error) {
	cacheable := itemID == "" && opts == (ConnectTokenOptions{})

	m.mu.Lock()
	if cacheable && m.connectToken != "" && m.now().Before(m.connectExpiry) {
		token := m.connectToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	apiKey, err := m.APIKey(ctx)
	if err != nil {
		return "", err
	}

	var resp connectTokenResponse
	err = m.transport.Request(ctx, http.MethodPost, "/connect_token", nil,
		map[string]string{headerAPIKey: apiKey},
		connectTokenRequest{ItemID: itemID, Options: opts}, &resp)
	if err != nil {
		return "", fmt.Errorf("connect token exchange failed: %w", err)
	}
	if resp.AccessToken == "" {
		return "", &ParseError{Reason: "connect token response missing accessToken"}
	}

	if cacheable {
		m.mu.Lock()
		m.connectToken = resp.AccessToken
		m.connectExpiry = m.now().Add(m.connectTokenTTL - expiryBuffer)
		m.mu.Unlock()
	}

	return resp.AccessToken, nil
}

// Invalidate drops both cached tokens. Called after a downstream 401 so
// the next call re-authenticates.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiKey = ""
	m.apiKeyExpiry = time.Time{}
	m.connectToken = ""
	m.connectExpiry = time.Time{}
}
