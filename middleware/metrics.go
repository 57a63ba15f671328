package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-router/types"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

type MetricsMiddleware struct {
	metrics types.MetricsManager
}

func NewMetricsMiddleware(metrics types.MetricsManager) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: metrics}
}

// Handle records the request once the chain has returned. A request that is
// still unsent at that point is counted with the 501 it is about to get.
func (m *MetricsMiddleware) Handle(ctx *types.RequestCtx, next types.Next) error {
	start := time.Now()

	inFlight := m.metrics.Gauge("http_requests_in_flight", nil)
	inFlight.Inc()

	defer func() {
		inFlight.Dec()

		status := ctx.Response.StatusCode()
		if status == types.StatusNotSent {
			status = fasthttp.StatusNotImplemented
		}

		labels := map[string]string{
			"method": string(ctx.Method()),
			"status": strconv.Itoa(status),
		}

		m.metrics.Counter("http_requests_total", labels).Inc()
		m.metrics.Histogram("http_request_duration_seconds", durationBuckets,
			map[string]string{"method": labels["method"]}).ObserveDuration(start)
	}()

	return next()
}
