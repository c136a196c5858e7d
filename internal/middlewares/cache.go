package middlewares

import (
	"fmt"
	"net/http"
	"time"
)

// Cache marks responses as privately cacheable for maxAge.
func Cache(maxAge time.Duration, handler http.Handler) http.Handler {
	value := fmt.Sprintf("private, max-age=%d", int(maxAge.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		handler.ServeHTTP(w, r)
	})
}
