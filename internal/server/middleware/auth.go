package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/golang-jwt/jwt/v5"
)

const SessionCookie = "session-token"

type PermissionCompiler func(names []string) (state.Permission, error)

// AppClaims defines our custom JWT claims structure.
type AppClaims struct {
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("no token presented")

// NewAuthMiddleware resolves the caller's identity from a JWT carried in
// the session cookie, a bearer header or the "token" query parameter.
// Requests without a token continue as anonymous; an invalid token is
// rejected.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret string, pCompiler PermissionCompiler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString, err := extractToken(r)
			if errors.Is(err, errNoToken) {
				next.ServeHTTP(w, r)
				return
			}

			// Parse and validate the JWT token with HMAC signing
			token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			// Reject token if invalid
			if err != nil || !token.Valid {
				logger.Warn("Invalid JWT token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*AppClaims)
			if !ok {
				logger.Error("Failed to parse custom JWT claims", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			perms, err := pCompiler(claims.Permissions)
			if err != nil {
				logger.Error("Token contains unregistered permissions",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			reqMeta.UserID = claims.Subject
			reqMeta.GlobalPermissions = perms
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok, nil
		}
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", errNoToken
}

// RequirePermission rejects anonymous callers and callers lacking perm.
// It must run after the auth middleware.
func RequirePermission(logger *slog.Logger, perm state.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if reqMeta.UserID == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !reqMeta.GlobalPermissions.Has(perm) {
				logger.Warn("Permission denied", slog.String("userID", reqMeta.UserID), slog.String("path", r.URL.Path))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
