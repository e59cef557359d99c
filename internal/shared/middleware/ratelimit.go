package middleware

import (
	"fmt"
	"net/http"

	"github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewRateLimiter builds an in-memory limiter from a formatted rate
// such as "120-M" (120 requests per minute).
func NewRateLimiter(format string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", format, err)
	}
	return limiter.New(memory.NewStore(), rate), nil
}

// RateLimit applies per-client-IP rate limiting to the wrapped handler.
func RateLimit(l *limiter.Limiter, next http.Handler) http.Handler {
	return limiterstdlib.NewMiddleware(l).Handler(next)
}
