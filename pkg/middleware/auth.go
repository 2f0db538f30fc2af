package middleware

import (
	"context"
	"net/http"
	apperrors "slotswapper/pkg/errors"
	httputil "slotswapper/pkg/http"
	"slotswapper/pkg/logger"
	"strings"
)

const CallerIDKey contextKey = "caller_id"

// TokenVerifier returns the user id a bearer token was issued to.
type TokenVerifier interface {
	Parse(token string) (string, error)
}

// Authenticate requires a valid bearer token on every route except the
// public paths, and stores the verified caller id in the request context.
func Authenticate(verifier TokenVerifier, log *logger.Logger, publicPaths ...string) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				rejectUnauthorized(w, log, r, "Missing bearer token")
				return
			}

			callerID, err := verifier.Parse(token)
			if err != nil {
				rejectUnauthorized(w, log, r, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), callerID)))
		})
	}
}

func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, CallerIDKey, callerID)
}

func CallerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CallerIDKey).(string)
	return id, ok && id != ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Request not authenticated",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"method", r.Method,
	)

	_ = httputil.WriteError(w, apperrors.Unauthorized(reason))
}
