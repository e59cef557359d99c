// Package listener bridges PostgreSQL NOTIFY into sync triggers, so
// other services sharing the database can request a refresh without
// going through the HTTP API.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"agrego/internal/domain/openfinance"
	"agrego/internal/shared/logger"
)

const (
	channelName       = "sync_requests"
	reconnectInterval = 5 * time.Second
)

// SyncRequest is the payload sent with NOTIFY sync_requests. An item
// id narrows the sync to one connection; without one the whole user
// is refreshed.
type SyncRequest struct {
	UserID int64  `json:"user_id"`
	ItemID string `json:"item_id"`
}

// SyncTrigger is the slice of the sync orchestrator the listener needs.
type SyncTrigger interface {
	SyncUser(ctx context.Context, userID int64) (*openfinance.SyncResult, error)
	SyncConnectionByItemID(ctx context.Context, providerItemID string) (*openfinance.SyncResult, error)
}

// SyncListener listens for PostgreSQL sync request notifications
type SyncListener struct {
	connStr    string
	trigger    SyncTrigger
	shutdownCh chan struct{}
	done       chan struct{}
}

// NewSyncListener creates a new listener for sync request notifications
func NewSyncListener(connStr string, trigger SyncTrigger) *SyncListener {
	return &SyncListener{
		connStr:    connStr,
		trigger:    trigger,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening for notifications in a background goroutine
func (l *SyncListener) Start(ctx context.Context) {
	go l.listen(ctx)
	logger.Get().Infow("sync request listener started", "channel", channelName)
}

// Stop gracefully shuts down the listener
func (l *SyncListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	logger.Get().Infow("sync request listener stopped")
}

func (l *SyncListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		// Wait before reconnecting
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			logger.Get().Infow("reconnecting to postgres for sync notifications")
		}
	}
}

func (l *SyncListener) connectAndListen(ctx context.Context) {
	// Dedicated connection; the pool cannot carry LISTEN.
	pqListener := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Get().Warnw("sync listener event error", "error", err)
		}
	})
	defer pqListener.Close()

	if err := pqListener.Listen(channelName); err != nil {
		logger.Get().Errorw("failed to listen on channel", "channel", channelName, "error", err)
		return
	}

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case notification := <-pqListener.Notify:
			if notification == nil {
				// Connection lost, break to reconnect
				return
			}
			l.handleNotification(notification)
		case <-time.After(90 * time.Second):
			// Ping to keep connection alive
			go func() {
				if err := pqListener.Ping(); err != nil {
					logger.Get().Warnw("sync listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *SyncListener) handleNotification(notification *pq.Notification) {
	var req SyncRequest
	if err := json.Unmarshal([]byte(notification.Extra), &req); err != nil {
		logger.Get().Warnw("failed to parse sync request payload", "error", err)
		return
	}
	if req.UserID <= 0 && req.ItemID == "" {
		logger.Get().Warnw("sync request names neither a user nor an item")
		return
	}

	// Background context since the parent may be cancelled during shutdown
	go l.runSync(context.Background(), req)
}

func (l *SyncListener) runSync(ctx context.Context, req SyncRequest) {
	var err error
	if req.ItemID != "" {
		_, err = l.trigger.SyncConnectionByItemID(ctx, req.ItemID)
	} else {
		_, err = l.trigger.SyncUser(ctx, req.UserID)
	}

	switch {
	case err == nil:
	case errors.Is(err, openfinance.ErrSyncInProgress):
		logger.Get().Infow("requested sync already running", "item_id", req.ItemID)
	default:
		logger.Get().Errorw("requested sync failed",
			"user_id", req.UserID, "item_id", req.ItemID, "error", err)
	}
}
