package http

import (
	"net/http"
	"strconv"

	"agrego/internal/domain/connection"
	"agrego/internal/shared/logger"
)

// ConnectionHandler exposes read and explicit-removal operations on
// connections. All other mutation flows through syncs and webhooks.
type ConnectionHandler struct {
	repo connection.Repository
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(repo connection.Repository) *ConnectionHandler {
	return &ConnectionHandler{repo: repo}
}

// HandleListConnections returns the connections for a user
func (h *ConnectionHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "valid userId query parameter is required"})
		return
	}

	conns, err := h.repo.ListByUserID(r.Context(), userID)
	if err != nil {
		logger.Get().Errorw("failed to list connections", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list connections"})
		return
	}
	if conns == nil {
		conns = []*connection.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// HandleDeleteConnection removes one connection on explicit user
// request. This is the only path that hard-deletes a connection.
func (h *ConnectionHandler) HandleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "valid connection id is required"})
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "valid userId query parameter is required"})
		return
	}

	if err := h.repo.Delete(r.Context(), id, userID); err != nil {
		if err == connection.ErrConnectionNotFound {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "connection not found"})
			return
		}
		logger.Get().Errorw("failed to delete connection", "connection_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete connection"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
