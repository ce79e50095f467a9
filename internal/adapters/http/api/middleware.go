package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/rankcrawl/pkg/metrics"
)

// MetricsMiddleware counts requests to endpoint by method and status, and
// reports failed ones under the "http" component.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next(rec, r)

		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(rec.code), time.Since(start))
		if rec.code >= http.StatusBadRequest {
			metrics.RecordErrorByComponent("http", getErrorType(rec.code))
		}
	}
}

func getErrorType(code int) string {
	switch {
	case code >= http.StatusInternalServerError:
		return "server_error"
	case code == http.StatusNotFound:
		return "not_found"
	case code >= http.StatusBadRequest:
		return "client_error"
	}
	return "unknown"
}

// statusRecorder remembers the status code a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
