package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/edgesync/internal/auth"
	"github.com/iudanet/edgesync/pkg/api"
)

// AuthMiddleware проверяет bearer токен реплики и кладет ее идентификатор
// в контекст запроса (auth.WithPeer).
func AuthMiddleware(logger *slog.Logger, cfg auth.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				logger.Warn("Missing or malformed Authorization header", "path", r.URL.Path)
				unauthorized(w, "missing token")
				return
			}

			claims, err := auth.ValidateToken(cfg, tokenString)
			if err != nil {
				logger.Warn("Invalid replica token", "error", err)
				unauthorized(w, "invalid token")
				return
			}

			logger.Debug("Replica authenticated", "peer_id", claims.ReplicaID)
			next.ServeHTTP(w, r.WithContext(auth.WithPeer(r.Context(), claims.ReplicaID)))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization: Bearer <token>
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, &api.ErrorResponse{Error: msg, Code: api.CodeUnauthorized})
}

func writeError(w http.ResponseWriter, status int, resp *api.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
