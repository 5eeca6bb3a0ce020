package idempotency

import (
	"bytes"
	"net/http"
)

const (
	HeaderKey    = "Idempotency-Key"
	HeaderReplay = "Idempotency-Replay"
)

// Middleware replays the stored response when a request repeats an
// Idempotency-Key for the same method and path. Server errors are not stored,
// so a failed call can be retried with the same key. Requests without the
// header pass through unchanged.
func Middleware(cache *Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			scoped := r.Method + " " + r.URL.Path + " " + key

			if e, ok := cache.Get(scoped); ok {
				for k, v := range e.Header {
					w.Header()[k] = append([]string(nil), v...)
				}
				w.Header().Set(HeaderReplay, "true")
				w.WriteHeader(e.StatusCode)
				_, _ = w.Write(e.Body)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError {
				return
			}
			cache.Set(scoped, Response{
				Body:       rec.body.Bytes(),
				StatusCode: rec.statusCode,
				Header:     rec.Header().Clone(),
			})
		})
	}
}

// responseRecorder tees the response into a buffer.
type responseRecorder struct {
	http.ResponseWriter
	body       bytes.Buffer
	statusCode int
	written    bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.written = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
