package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/spacenexus/spacetoken-server/pkg/metrics"
)

const (
	httpResponseStatusCodeLevelAttributeKey = "http.response.statusCodeLevel"

	httpRequestLatencyMetricName = "Custom/Web/RequestLatency"
)

// NewRelicHTTPMiddleware starts a New Relic web transaction for every request
// and makes it, and the application, available to downstream tracing. The
// transaction is named after the matched chi route pattern.
func NewRelicHTTPMiddleware(app *newrelic.Application) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if app == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			txn := app.StartTransaction(r.Method + " " + r.URL.Path)
			defer txn.End()

			txn.SetWebRequestHTTP(r)

			ctx := metrics.WithApplication(r.Context(), app)
			ctx = newrelic.NewContext(ctx, txn)
			r = r.WithContext(ctx)

			recorder := &statusRecorder{ResponseWriter: txn.SetWebResponse(w), statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if routeContext := chi.RouteContext(r.Context()); routeContext != nil {
				if pattern := routeContext.RoutePattern(); len(pattern) > 0 {
					txn.SetName(r.Method + " " + pattern)
				}
			}
			txn.AddAttribute(httpResponseStatusCodeLevelAttributeKey, string(httpStatusCodeLevel(recorder.statusCode)))

			metrics.RecordDuration(ctx, httpRequestLatencyMetricName, time.Since(start))
		})
	}
}

func httpStatusCodeLevel(statusCode int) statusLevel {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return errorLevel
	case statusCode == http.StatusForbidden, statusCode == http.StatusConflict, statusCode == http.StatusTooManyRequests:
		return warningLevel
	default:
		return infoLevel
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
