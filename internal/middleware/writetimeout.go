package middleware

import (
	"net/http"
	"time"
)

// WriteTimeout moves the connection write deadline to d from the start of the
// request, overriding the server-wide WriteTimeout for long streams such as
// segment bundles. A non-positive d leaves the server deadline in place.
func WriteTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Recorders and other writers without a connection return
			// http.ErrNotSupported; the request proceeds either way.
			_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d))
			next.ServeHTTP(w, r)
		})
	}
}
