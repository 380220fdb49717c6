package restapi

import (
	"fmt"
	"net/http"
)

// CacheControlMiddleware sets the Cache-Control header on successful
// responses: public with the given max-age when durationSeconds is positive,
// uncacheable otherwise. Error responses are always uncacheable. The
// dashboard's JSON routes serve live polling data, so they register with zero.
func CacheControlMiddleware(durationSeconds int, next http.Handler) http.Handler {
	headerValue := "no-cache, no-store, must-revalidate"
	if durationSeconds > 0 {
		headerValue = fmt.Sprintf("public, max-age=%d", durationSeconds)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, headerValue: headerValue}, r)
	})
}

// cacheControlWriter defers the header choice until the status code is known.
type cacheControlWriter struct {
	http.ResponseWriter
	headerValue   string
	headerWritten bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.headerWritten = true
		if code >= 200 && code < 300 {
			w.ResponseWriter.Header().Set("Cache-Control", w.headerValue)
		} else {
			w.ResponseWriter.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
