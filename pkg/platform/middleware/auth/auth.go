package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/requestcontext"
)

// TokenVerifier turns a bearer token into a verified external identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*id.ExternalIdentity, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// Authenticate verifies an optional bearer token. Requests without an
// Authorization header continue anonymously; a present but invalid token is
// rejected with 401 so clients notice expired sessions.
func Authenticate(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			identity, err := verifier.Verify(ctx, strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithIdentity(ctx, identity)))
		})
	}
}

// UserResolver links a verified identity to an internal user.
type UserResolver interface {
	Resolve(ctx context.Context, identity *id.ExternalIdentity) (*id.ResolvedUser, error)
}

// ResolveUser runs the identity resolver for authenticated requests and
// stores the internal user in the context. Anonymous requests pass through.
func ResolveUser(resolver UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := requestcontext.Identity(ctx)
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.Resolve(ctx, identity)
			if err != nil {
				logger.ErrorContext(ctx, "failed to resolve identity",
					"error", err,
					"subject", identity.Subject,
					"request_id", requestcontext.RequestID(ctx),
				)
				if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeConflict) {
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Identity could not be linked to an account")
					return
				}
				writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Identity could not be resolved")
				return
			}
			if user != nil {
				ctx = requestcontext.WithUser(ctx, user.ID, user.Email)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without a resolved user with 401.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.UserID(ctx).IsNil() {
				logger.WarnContext(ctx, "unauthorized access - no signed-in user",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Sign in required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
