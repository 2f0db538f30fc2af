package middleware

import (
	"net/http"
	apperrors "slotswapper/pkg/errors"
	httputil "slotswapper/pkg/http"
)

const CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

// MaxRequestSize rejects declared oversized bodies up front and caps the
// reader for chunked ones.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
