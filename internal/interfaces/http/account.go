package http

import (
	"errors"
	"net/http"
	"strconv"

	"agrego/internal/domain/account"
	"agrego/internal/shared/logger"
)

// AccountHandler exposes the per-account sync toggle. A paused account
// keeps its history; the syncers stop touching it until re-enabled.
type AccountHandler struct {
	repo account.Repository
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(repo account.Repository) *AccountHandler {
	return &AccountHandler{repo: repo}
}

type syncToggleRequest struct {
	UserID  int64 `json:"userId"`
	Enabled *bool `json:"enabled"`
}

// HandleSyncToggle enables or disables syncing for one account
func (h *AccountHandler) HandleSyncToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "valid account id is required"})
		return
	}

	var req syncToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID <= 0 || req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId and enabled are required"})
		return
	}

	if err := h.repo.SetSyncEnabled(r.Context(), id, req.UserID, *req.Enabled); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "account not found"})
			return
		}
		logger.Get().Errorw("failed to toggle account sync", "account_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to update account"})
		return
	}

	logger.Get().Infow("account sync toggled", "account_id", id, "user_id", req.UserID, "enabled", *req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}
