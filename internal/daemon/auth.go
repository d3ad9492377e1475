package daemon

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"nemfreview/internal/services"
)

const (
	// HolderHeader names the reviewer acting on a request.
	HolderHeader = "X-Reviewer"
	// RequestIDHeader carries the correlation id echoed on every response.
	RequestIDHeader = "X-Request-ID"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"unauthorized","kind":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if strings.TrimPrefix(auth, "Bearer ") != token {
				http.Error(w, `{"error":"unauthorized","kind":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDMiddleware tags the request context with the caller's request id,
// or a fresh one, and echoes it back.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		if holder := holderFrom(r); holder != "" {
			ctx = services.WithHolder(ctx, holder)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func holderFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HolderHeader))
}
