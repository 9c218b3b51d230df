package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// LogRequest logs every finished request. Server errors go out at warn level,
// the rest at trace.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			resp := &responseWriter{w, http.StatusOK}

			next.ServeHTTP(resp, r)

			entry := log.WithFields(log.Fields{
				"method":   r.Method,
				"route":    routeName(r),
				"status":   resp.statusCode,
				"duration": time.Since(begin).String(),
				"ua":       r.Header.Get("User-Agent"),
			})
			if clientID := mux.Vars(r)["clientId"]; clientID != "" {
				entry = entry.WithField("client_id", clientID)
			}

			if resp.statusCode >= http.StatusInternalServerError {
				entry.Warnf("<==== %s %s", r.Method, r.URL.Path)
				return
			}
			entry.Tracef("<==== %s %s", r.Method, r.URL.Path)
		})
	}
}
