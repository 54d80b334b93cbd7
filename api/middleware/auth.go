package middleware

import (
	"net/http"
	"strings"

	"github.com/thalibox/marketplace-backend/api/responses"
	pkgAuth "github.com/thalibox/marketplace-backend/pkg/auth"
	"github.com/thalibox/marketplace-backend/pkg/auth/session"
	"github.com/thalibox/marketplace-backend/pkg/config"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

// tokenQueryParam carries the access token on WebSocket handshakes, where
// browsers cannot set headers.
const tokenQueryParam = "token"

// AuthOption tweaks how Auth extracts credentials.
type AuthOption func(*authOptions)

type authOptions struct {
	allowQueryToken bool
}

// AllowQueryToken accepts ?token= when the Authorization header is absent.
func AllowQueryToken() AuthOption {
	return func(o *authOptions) { o.allowQueryToken = true }
}

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger, opts ...AuthOption) func(http.Handler) http.Handler {
	var options authOptions
	for _, opt := range opts {
		opt(&options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && options.allowQueryToken {
				token = strings.TrimSpace(r.URL.Query().Get(tokenQueryParam))
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := WithPrincipal(r.Context(), claims.UserID, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    claims.UserID.String(),
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
