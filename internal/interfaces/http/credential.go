package http

import (
	"errors"
	"net/http"

	"agrego/internal/domain/credential"
	"agrego/internal/shared/logger"
)

// CredentialHandler manages per-user provider credentials
type CredentialHandler struct {
	repo credential.Repository
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(repo credential.Repository) *CredentialHandler {
	return &CredentialHandler{repo: repo}
}

type saveCredentialRequest struct {
	UserID       int64  `json:"userId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// HandleCredential stores or removes a user's provider credential
// pair. The secret is encrypted by the repository before it touches
// the store.
func (h *CredentialHandler) HandleCredential(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut, http.MethodPost:
		h.handleSave(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CredentialHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	params := credential.SaveParams{
		UserID:       req.UserID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	}
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := h.repo.Save(r.Context(), params); err != nil {
		logger.Get().Errorw("failed to save credential", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save credential"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CredentialHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req saveCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil || req.UserID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}
	if err := h.repo.Delete(r.Context(), req.UserID); err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "credential not found"})
			return
		}
		logger.Get().Errorw("failed to delete credential", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to delete credential"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
