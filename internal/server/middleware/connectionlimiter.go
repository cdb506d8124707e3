package middleware

import (
	"log/slog"
	"net/http"

	"github.com/florentina1509/dizidunya/pkg/config"
)

type OwnerConnectionCounter func(owner string) int
type OwnerConnectionCycler func(owner string)

// NewConnectionLimiter caps the live sockets of one owner. At the limit it
// either rejects the new socket or closes the owner's oldest one.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter OwnerConnectionCounter,
	cycler OwnerConnectionCycler,
	config config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.MaxPerUser <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			owner := reqMeta.Owner()
			count := counter(owner)
			if count < config.MaxPerUser {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("Owner connection limit reached", slog.String("owner", owner), slog.Int("count", count))
			switch config.Mode {
			case "reject":
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
				return
			case "cycle":
				cycler(owner)
				next.ServeHTTP(w, r)
			default:
				logger.Error("Invalid connection limit mode configured", slog.String("mode", config.Mode))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

		})
	}
}
