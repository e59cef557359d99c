package main

import (
	"net/http"

	"agrego/internal/shared/config"
	"agrego/internal/shared/logger"
	"agrego/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler
// with middleware applied.
func SetupRoutes(deps *Dependencies, cfg *config.Config) (http.Handler, error) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", handleHealth(deps))

	// Provider push events
	mux.HandleFunc("/api/webhooks/openfinance", deps.WebhookHandler.HandleWebhook)

	// Manual sync and linking
	mux.HandleFunc("/api/sync", deps.SyncHandler.HandleSync)
	mux.HandleFunc("/api/connect_token", deps.SyncHandler.HandleConnectToken)

	// Credentials, connections, devices
	mux.HandleFunc("/api/credentials", deps.CredentialHandler.HandleCredential)
	mux.HandleFunc("/api/connections", deps.ConnectionHandler.HandleListConnections)
	mux.HandleFunc("/api/connections/{id}", deps.ConnectionHandler.HandleDeleteConnection)
	mux.HandleFunc("/api/accounts/{id}/sync", deps.AccountHandler.HandleSyncToggle)
	mux.HandleFunc("/api/devices", deps.NotificationHandler.HandleRegisterDevice)

	rateLimiter, err := middleware.NewRateLimiter(cfg.Server.RateLimit)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = mux
	handler = middleware.RateLimit(rateLimiter, handler)
	handler = middleware.Telemetry(handler)
	handler = middleware.Logging(handler)
	if len(cfg.Server.AllowedHosts) > 0 {
		handler = middleware.AllowedHosts(cfg.Server.AllowedHosts, handler)
	}

	return handler, nil
}

// handleHealth reports process and database health
func handleHealth(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.PingContext(r.Context()); err != nil {
			logger.Get().Errorw("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
