package middleware

import (
	"io"
	"net/http"
)

// DrainAndCloseRequest reads what the handler left of the body, at most
// maxDrainBytes, and closes it. Keep-alive connections can only be reused
// once the body is fully consumed.
func DrainAndCloseRequest(maxDrainBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrainBytes)
			_ = r.Body.Close()
		})
	}
}
