package openfinance

import (
	"context"
	"fmt"
	"sync"

	"agrego/internal/domain/credential"
)

// Factory builds provider clients on demand from stored credentials.
// Clients are cached per user so token state survives across syncs; a
// changed credential pair rebuilds the client on the next call.
type Factory struct {
	transport *Transport
	creds     credential.Repository

	mu      sync.Mutex
	clients map[int64]*cachedClient
}

type cachedClient struct {
	clientID     string
	clientSecret string
	client       *Client
}

// NewFactory creates a client factory sharing one transport. The
// shared transport keeps the provider-wide rate limit honest no
// matter how many users sync concurrently.
func NewFactory(transport *Transport, creds credential.Repository) *Factory {
	return &Factory{
		transport: transport,
		creds:     creds,
		clients:   make(map[int64]*cachedClient),
	}
}

// ClientForUser returns a provider client authenticated with the
// user's stored credential. Returns ErrNoCredential when the user has
// none, which callers treat as "sync disabled".
func (f *Factory) ClientForUser(ctx context.Context, userID int64) (ClientInterface, error) {
	cred, err := f.creds.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return nil, ErrNoCredential
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.clients[userID]; ok &&
		cached.clientID == cred.ClientID && cached.clientSecret == cred.ClientSecret {
		return cached.client, nil
	}

	client, err := NewClient(f.transport, cred.ClientID, cred.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider client: %w", err)
	}
	f.clients[userID] = &cachedClient{
		clientID:     cred.ClientID,
		clientSecret: cred.ClientSecret,
		client:       client,
	}
	return client, nil
}

// Invalidate drops the cached client for a user, forcing the next
// sync to re-read the stored credential.
func (f *Factory) Invalidate(userID int64) {
	f.mu.Lock()
	delete(f.clients, userID)
	f.mu.Unlock()
}
