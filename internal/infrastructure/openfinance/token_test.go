package openfinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testClientID = "7f9c24e8-3b0a-4f39-9d8a-1c2b3d4e5f60"

// fakeProvider serves /auth and /connect_token, handing out numbered
// tokens so tests can tell refreshes apart.
type fakeProvider struct {
	authCalls    int
	connectCalls int
	expiresIn    int
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"apiKey":    fmt.Sprintf("key-%d", f.authCalls),
			"expiresIn": f.expiresIn,
		})
	})
	mux.HandleFunc("/connect_token", func(w http.ResponseWriter, r *http.Request) {
		f.connectCalls++
		if r.Header.Get(headerAPIKey) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": fmt.Sprintf("connect-%d", f.connectCalls),
		})
	})
	return mux
}

func newTestTokenManager(t *testing.T, baseURL string) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(newTestTransport(baseURL), testClientID, "secret")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return m
}

func TestNewTokenManagerValidation(t *testing.T) {
	tests := []struct {
		name         string
		clientID     string
		clientSecret string
	}{
		{"empty client id", "", "secret"},
		{"empty secret", testClientID, ""},
		{"client id not a UUID", "not-a-uuid", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenManager(newTestTransport("http://unreachable.invalid"), tt.clientID, tt.clientSecret)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("got %v, want ErrInvalidCredentials before any network call", err)
			}
		})
	}
}

func TestAPIKeyCachedUntilExpiryBuffer(t *testing.T) {
	provider := &fakeProvider{expiresIn: 3600}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	ctx := context.Background()
	key, err := m.APIKey(ctx)
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if key != "key-1" {
		t.Fatalf("key = %q, want key-1", key)
	}

	// Within the declared lifetime the cached key is reused.
	current = current.Add(50 * time.Minute)
	key, err = m.APIKey(ctx)
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if key != "key-1" || provider.authCalls != 1 {
		t.Errorf("key = %q with %d auth calls, want cached key-1 and 1 call", key, provider.authCalls)
	}

	// Inside the 5-minute buffer before the declared expiry the key is
	// treated as stale even though the provider would still accept it.
	current = current.Add(7 * time.Minute) // 57m elapsed, expiry at 60m - 5m buffer
	key, err = m.APIKey(ctx)
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if key != "key-2" || provider.authCalls != 2 {
		t.Errorf("key = %q with %d auth calls, want refreshed key-2", key, provider.authCalls)
	}
}

func TestAPIKeyDefaultTTLWhenUndeclared(t *testing.T) {
	provider := &fakeProvider{expiresIn: 0}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	ctx := context.Background()
	if _, err := m.APIKey(ctx); err != nil {
		t.Fatalf("APIKey: %v", err)
	}

	current = current.Add(defaultAPIKeyTTL - expiryBuffer - time.Minute)
	if _, err := m.APIKey(ctx); err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if provider.authCalls != 1 {
		t.Errorf("auth calls = %d, want 1 inside the default TTL", provider.authCalls)
	}

	current = current.Add(2 * time.Minute)
	if _, err := m.APIKey(ctx); err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if provider.authCalls != 2 {
		t.Errorf("auth calls = %d, want 2 past the default TTL", provider.authCalls)
	}
}

func TestConnectTokenCachesOnlyUnscoped(t *testing.T) {
	provider := &fakeProvider{expiresIn: 3600}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	ctx := context.Background()

	token, err := m.ConnectToken(ctx, "", ConnectTokenOptions{})
	if err != nil {
		t.Fatalf("ConnectToken: %v", err)
	}
	if token != "connect-1" {
		t.Fatalf("token = %q, want connect-1", token)
	}

	token, err = m.ConnectToken(ctx, "", ConnectTokenOptions{})
	if err != nil {
		t.Fatalf("ConnectToken: %v", err)
	}
	if token != "connect-1" || provider.connectCalls != 1 {
		t.Errorf("unscoped token should be served from cache, got %q after %d calls", token, provider.connectCalls)
	}

	// An update-mode token is bound to the item; never cached.
	for i := 0; i < 2; i++ {
		if _, err := m.ConnectToken(ctx, "item-1", ConnectTokenOptions{}); err != nil {
			t.Fatalf("scoped ConnectToken: %v", err)
		}
	}
	if provider.connectCalls != 3 {
		t.Errorf("connect calls = %d, want 3 (scoped tokens bypass the cache)", provider.connectCalls)
	}

	// Options also scope the token.
	if _, err := m.ConnectToken(ctx, "", ConnectTokenOptions{ClientUserID: "u-1"}); err != nil {
		t.Fatalf("ConnectToken with options: %v", err)
	}
	if provider.connectCalls != 4 {
		t.Errorf("connect calls = %d, want 4", provider.connectCalls)
	}
}

func TestInvalidateDropsBothTokens(t *testing.T) {
	provider := &fakeProvider{expiresIn: 3600}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	ctx := context.Background()

	if _, err := m.APIKey(ctx); err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if _, err := m.ConnectToken(ctx, "", ConnectTokenOptions{}); err != nil {
		t.Fatalf("ConnectToken: %v", err)
	}

	m.Invalidate()

	key, err := m.APIKey(ctx)
	if err != nil {
		t.Fatalf("APIKey after Invalidate: %v", err)
	}
	if key != "key-2" || provider.authCalls != 2 {
		t.Errorf("key = %q with %d auth calls, want a fresh key", key, provider.authCalls)
	}

	token, err := m.ConnectToken(ctx, "", ConnectTokenOptions{})
	if err != nil {
		t.Fatalf("ConnectToken after Invalidate: %v", err)
	}
	if token != "connect-2" {
		t.Errorf("token = %q, want a fresh connect token", token)
	}
}
