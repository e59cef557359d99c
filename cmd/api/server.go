package main

import (
	"context"
	"net/http"
	"time"

	"agrego/internal/interfaces/scheduler"
	"agrego/internal/shared/logger"
)

// StartServer creates and starts the HTTP server in a goroutine.
func StartServer(addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Get().Infow("HTTP server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Get().Fatalw("HTTP server error", "error", err)
		}
	}()

	return srv
}

// GracefulShutdown stops the scheduler first so no new syncs start,
// then drains the HTTP server.
func GracefulShutdown(srv *http.Server, sched *scheduler.Scheduler, timeout time.Duration) {
	logger.Get().Infow("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if sched != nil {
		sched.Shutdown(timeout)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().Errorw("error shutting down server", "error", err)
	}

	logger.Get().Infow("server stopped")
}
