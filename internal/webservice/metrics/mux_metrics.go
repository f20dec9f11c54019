package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MuxMiddleware counts every request reaching a mux, including ones that
// match no route. Per-route timings are handled by Middleware.Monitor.
type MuxMiddleware struct {
	registry prometheus.Registerer
}

// NewMuxMiddleware creates a MuxMiddleware registering on the provided registry.
func NewMuxMiddleware(registry prometheus.Registerer) *MuxMiddleware {
	return &MuxMiddleware{
		registry: registry,
	}
}

// Wrap instruments handler with a request counter labeled by method and code,
// curried with the given handler name.
func (m *MuxMiddleware) Wrap(handlerName string, handler http.Handler) http.HandlerFunc {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"handler": handlerName}, m.registry)

	requestsTotal := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_mux_requests_total",
			Help: "Tracks the number of HTTP requests to the mux.",
		}, []string{"method", "code"},
	)

	return promhttp.InstrumentHandlerCounter(
		requestsTotal,
		handler,
	)
}
