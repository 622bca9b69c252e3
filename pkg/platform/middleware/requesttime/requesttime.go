// Package requesttime pins one "now" per HTTP request so session expiry,
// lockout windows and credential timestamps agree within a request.
package requesttime

import (
	"net/http"
	"time"

	"attesto/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it where requestcontext.Now finds it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
