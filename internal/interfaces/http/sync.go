package http

import (
	"errors"
	"net/http"

	"agrego/internal/domain/openfinance"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// SyncHandler exposes the manual sync trigger and the connect-token
// exchange consumed by the linking widget.
type SyncHandler struct {
	syncService SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService SyncService) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

type syncRequest struct {
	UserID int64  `json:"userId"`
	ItemID string `json:"itemId,omitempty"`
}

type syncResponse struct {
	Found   int      `json:"found"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// HandleSync triggers a sync for one user, or one connection when an
// item id is given.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID <= 0 && req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId or itemId is required"})
		return
	}

	var (
		result *openfinance.SyncResult
		err    error
	)
	if req.ItemID != "" {
		result, err = h.syncService.SyncConnectionByItemID(r.Context(), req.ItemID)
	} else {
		result, err = h.syncService.SyncUser(r.Context(), req.UserID)
	}
	if err != nil {
		switch {
		case errors.Is(err, openfinance.ErrSyncInProgress):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "sync already in progress"})
		case errors.Is(err, openfinance.ErrUnknownConnection):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown connection"})
		default:
			logger.Get().Errorw("manual sync failed", "user_id", req.UserID, "item_id", req.ItemID, "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "sync failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Found:   result.Found,
		Created: result.Created,
		Updated: result.Updated,
		Skipped: result.Skipped,
		Errors:  result.Errors,
	})
}

type connectTokenRequest struct {
	UserID     int64  `json:"userId"`
	ItemID     string `json:"itemId,omitempty"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

type connectTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// HandleConnectToken issues a narrow-scoped linking token. Pass an
// item id to get an update-mode token for an existing connection.
func (h *SyncHandler) HandleConnectToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req connectTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}

	token, err := h.syncService.ConnectTokenForUser(r.Context(), req.UserID, req.ItemID, ofclient.ConnectTokenOptions{
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		if errors.Is(err, openfinance.ErrNoCredential) {
			writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: "no provider credential configured"})
			return
		}
		logger.Get().Errorw("connect token exchange failed", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to issue connect token"})
		return
	}

	writeJSON(w, http.StatusOK, connectTokenResponse{AccessToken: token})
}
