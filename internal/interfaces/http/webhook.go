package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"agrego/internal/domain/connection"
	"agrego/internal/domain/openfinance"
	"agrego/internal/domain/webhooklog"
	ofclient "agrego/internal/infrastructure/openfinance"
	"agrego/internal/shared/logger"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw body when
// signature validation is configured.
const signatureHeader = "X-Webhook-Signature"

// SyncService is the slice of the sync orchestrator the HTTP layer
// consumes. Satisfied by *openfinance.Service.
type SyncService interface {
	SyncUser(ctx context.Context, userID int64) (*openfinance.SyncResult, error)
	SyncConnectionByItemID(ctx context.Context, providerItemID string) (*openfinance.SyncResult, error)
	SyncTransactionsByItemID(ctx context.Context, providerItemID string, from, to *time.Time) (*openfinance.SyncResult, error)
	SyncAccountsByItemID(ctx context.Context, providerItemID string) (*openfinance.SyncResult, error)
	SyncBillsByItemID(ctx context.Context, providerItemID string) (*openfinance.SyncResult, error)
	SyncInvestmentsByItemID(ctx context.Context, providerItemID string) (*openfinance.SyncResult, error)
	SyncLoansByItemID(ctx context.Context, providerItemID string) (*openfinance.SyncResult, error)
	RegisterConnection(ctx context.Context, userID int64, providerItemID string) (*openfinance.SyncResult, error)
	ConnectTokenForUser(ctx context.Context, userID int64, itemID string, opts ofclient.ConnectTokenOptions) (string, error)
}

// WebhookHandler is the single entry point for provider push events.
// Recognized events dispatch to the matching syncer; unknown events
// are acknowledged and dropped so the provider never enters a retry
// storm over something we will never handle.
type WebhookHandler struct {
	syncService SyncService
	connections connection.Repository
	logs        webhooklog.Repository

	// secret enables signature validation when non-empty. An empty
	// secret means the payload is trusted as-is; that is a deliberate
	// deployment option for private network setups.
	secret      string
	retryWindow time.Duration
	maxFailures int
}

// NewWebhookHandler creates the webhook entry point
func NewWebhookHandler(
	syncService SyncService,
	connections connection.Repository,
	logs webhooklog.Repository,
	secret string,
	retryWindow time.Duration,
	maxFailures int,
) *WebhookHandler {
	return &WebhookHandler{
		syncService: syncService,
		connections: connections,
		logs:        logs,
		secret:      secret,
		retryWindow: retryWindow,
		maxFailures: maxFailures,
	}
}

type webhookRequest struct {
	Event          string       `json:"event"`
	ItemID         string       `json:"itemId"`
	Data           *webhookData `json:"data"`
	TransactionIDs []string     `json:"transactionIds"`

	TransactionsCreatedAtFrom string `json:"transactionsCreatedAtFrom"`
	TransactionsCreatedAtTo   string `json:"transactionsCreatedAtTo"`
}

type webhookData struct {
	Status       string `json:"status"`
	ClientUserID int64  `json:"clientUserId,string"`
}

type webhookResponse struct {
	Success   bool   `json:"success"`
	Processed bool   `json:"processed"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// HandleWebhook accepts one provider event. Malformed payloads get an
// error status; everything recognizable is acknowledged with 200 even
// when processing failed, and the failure lands in the webhook log.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Message: "unreadable body", Error: err.Error()})
		return
	}

	if h.secret != "" && !h.validSignature(body, r.Header.Get(signatureHeader)) {
		logger.Get().Warnw("webhook signature mismatch, rejecting")
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Message: "invalid signature"})
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Message: "malformed payload", Error: err.Error()})
		return
	}
	if req.Event == "" {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Message: "event is required"})
		return
	}

	// A delivery that keeps failing for the same item stops being
	// retried inside the window: acknowledge so the provider moves on.
	if h.retriesExhausted(r.Context(), &req) {
		logger.Get().Warnw("suppressing webhook after repeated failures",
			"event", req.Event, "item_id", req.ItemID)
		resp := webhookResponse{Success: true, Processed: false, Message: "delivery suppressed after repeated failures"}
		h.record(r.Context(), &req, resp)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp := h.dispatch(r.Context(), &req)
	h.record(r.Context(), &req, resp)
	writeJSON(w, http.StatusOK, resp)
}

// retriesExhausted consults the webhook log before dispatching. Item
// lifecycle events are exempt: they are the recovery path out of a
// flagged connection and cost nothing to process.
func (h *WebhookHandler) retriesExhausted(ctx context.Context, req *webhookRequest) bool {
	if h.logs == nil || h.maxFailures <= 0 || req.ItemID == "" {
		return false
	}
	if strings.HasPrefix(req.Event, "item/") {
		return false
	}
	failures, err := h.logs.CountFailuresSince(ctx, req.ItemID, time.Now().Add(-h.retryWindow))
	if err != nil {
		logger.Get().Errorw("failed to count webhook failures", "item_id", req.ItemID, "error", err)
		return false
	}
	return failures >= h.maxFailures
}

// dispatch routes one event to its handler. Every return from here is
// an acknowledgement; only transport-level problems reject the
// delivery.
func (h *WebhookHandler) dispatch(ctx context.Context, req *webhookRequest) webhookResponse {
	logger.Get().Infow("webhook received", "event", req.Event, "item_id", req.ItemID)

	category := req.Event
	if idx := strings.Index(category, "/"); idx > 0 {
		category = category[:idx]
	}

	switch category {
	case "item":
		return h.handleItemEvent(ctx, req)
	case "transactions":
		from, to := h.transactionWindow(req)
		return h.syncOutcome(req, "transactions",
			func() (*openfinance.SyncResult, error) {
				return h.syncService.SyncTransactionsByItemID(ctx, req.ItemID, from, to)
			})
	case "accounts":
		return h.syncOutcome(req, "accounts",
			func() (*openfinance.SyncResult, error) {
				return h.syncService.SyncAccountsByItemID(ctx, req.ItemID)
			})
	case "credit_card_bills":
		return h.syncOutcome(req, "bills",
			func() (*openfinance.SyncResult, error) {
				return h.syncService.SyncBillsByItemID(ctx, req.ItemID)
			})
	case "investments":
		return h.syncOutcome(req, "investments",
			func() (*openfinance.SyncResult, error) {
				return h.syncService.SyncInvestmentsByItemID(ctx, req.ItemID)
			})
	case "loans":
		return h.syncOutcome(req, "loans",
			func() (*openfinance.SyncResult, error) {
				return h.syncService.SyncLoansByItemID(ctx, req.ItemID)
			})
	default:
		logger.Get().Infow("acknowledging unhandled webhook event", "event", req.Event)
		return webhookResponse{Success: true, Processed: false, Message: "event not handled"}
	}
}

// handleItemEvent updates the connection lifecycle directly. A
// brand-new item is registered when the payload names its owner.
func (h *WebhookHandler) handleItemEvent(ctx context.Context, req *webhookRequest) webhookResponse {
	if req.ItemID == "" {
		return webhookResponse{Success: true, Processed: false, Message: "item event without itemId"}
	}

	conn, err := h.connections.GetByProviderItemID(ctx, req.ItemID)
	if err != nil {
		return webhookResponse{Success: true, Processed: false, Message: "connection lookup failed", Error: err.Error()}
	}

	if conn == nil {
		if req.Event == "item/created" && req.Data != nil && req.Data.ClientUserID > 0 {
			if _, err := h.syncService.RegisterConnection(ctx, req.Data.ClientUserID, req.ItemID); err != nil {
				return webhookResponse{Success: true, Processed: false, Message: "failed to register new connection", Error: err.Error()}
			}
			return webhookResponse{Success: true, Processed: true, Message: "connection registered and synced"}
		}
		return webhookResponse{Success: true, Processed: false, Message: "unknown connection"}
	}

	status := statusForItemEvent(req.Event)
	if err := h.connections.UpdateStatus(ctx, req.ItemID, status); err != nil {
		return webhookResponse{Success: true, Processed: false, Message: "failed to update connection status", Error: err.Error()}
	}

	// A healthy update also refreshes data; status-only events stop here.
	if status == connection.StatusConnected {
		if _, err := h.syncService.SyncConnectionByItemID(ctx, req.ItemID); err != nil && !errors.Is(err, openfinance.ErrSyncInProgress) {
			return webhookResponse{Success: true, Processed: false, Message: "connection updated, sync failed", Error: err.Error()}
		}
	}
	return webhookResponse{Success: true, Processed: true, Message: "connection " + status}
}

// syncOutcome converts a syncer call into the acknowledge-always
// webhook contract.
func (h *WebhookHandler) syncOutcome(req *webhookRequest, what string, run func() (*openfinance.SyncResult, error)) webhookResponse {
	if req.ItemID == "" {
		return webhookResponse{Success: true, Processed: false, Message: what + " event without itemId"}
	}

	result, err := run()
	if err != nil {
		if errors.Is(err, openfinance.ErrSyncInProgress) {
			return webhookResponse{Success: true, Processed: false, Message: "sync already in progress"}
		}
		logger.Get().Errorw("webhook-triggered sync failed",
			"event", req.Event, "item_id", req.ItemID, "error", err)
		return webhookResponse{Success: true, Processed: false, Message: what + " sync failed", Error: err.Error()}
	}

	msg := what + " synced"
	if result != nil && len(result.Errors) > 0 {
		msg += " with partial errors"
	}
	return webhookResponse{Success: true, Processed: true, Message: msg}
}

// transactionWindow narrows the pull range from the payload when the
// provider sent one; the syncer falls back to the trailing 24h.
func (h *WebhookHandler) transactionWindow(req *webhookRequest) (from, to *time.Time) {
	if parsed, err := time.Parse(time.RFC3339, req.TransactionsCreatedAtFrom); err == nil {
		from = &parsed
	} else if parsed, err := time.Parse("2006-01-02", req.TransactionsCreatedAtFrom); err == nil {
		from = &parsed
	}
	if parsed, err := time.Parse(time.RFC3339, req.TransactionsCreatedAtTo); err == nil {
		to = &parsed
	} else if parsed, err := time.Parse("2006-01-02", req.TransactionsCreatedAtTo); err == nil {
		to = &parsed
	}
	return from, to
}

// record appends the delivery to the webhook log and flags the
// connection when failures pile up inside the retry window.
func (h *WebhookHandler) record(ctx context.Context, req *webhookRequest, resp webhookResponse) {
	if h.logs == nil {
		return
	}
	if _, err := h.logs.Record(ctx, webhooklog.RecordParams{
		Event:          req.Event,
		ProviderItemID: req.ItemID,
		Handled:        resp.Processed,
		Error:          resp.Error,
	}); err != nil {
		logger.Get().Errorw("failed to record webhook delivery", "event", req.Event, "error", err)
		return
	}

	if resp.Processed || req.ItemID == "" || resp.Error == "" {
		return
	}
	failures, err := h.logs.CountFailuresSince(ctx, req.ItemID, time.Now().Add(-h.retryWindow))
	if err != nil {
		logger.Get().Errorw("failed to count webhook failures", "item_id", req.ItemID, "error", err)
		return
	}
	if failures >= h.maxFailures {
		logger.Get().Warnw("flagging connection after repeated webhook failures",
			"item_id", req.ItemID, "failures", failures)
		if err := h.connections.UpdateStatus(ctx, req.ItemID, connection.StatusWebhookError); err != nil {
			logger.Get().Errorw("failed to flag connection", "item_id", req.ItemID, "error", err)
		}
	}
}

func (h *WebhookHandler) validSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func statusForItemEvent(event string) string {
	switch event {
	case "item/created", "item/updated":
		return connection.StatusConnected
	case "item/login_error", "item/waiting_user_input":
		return connection.StatusLoginError
	default:
		// item/outdated, item/deleted, item/error and future variants
		return connection.StatusOutdated
	}
}
