package metrics_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbox/taskbox/internal/webservice/metrics"
)

const muxRequestsTotalHeader = `# HELP http_mux_requests_total Tracks the number of HTTP requests to the mux.
# TYPE http_mux_requests_total counter
`

func TestNewMuxMiddleware(t *testing.T) {
	t.Parallel()

	require.NotNil(t, metrics.NewMuxMiddleware(prometheus.NewRegistry()))
}

func TestMuxMiddlewareWrap(t *testing.T) {
	t.Parallel()

	const validPath = "/test-path"

	type request struct {
		method string
		path   string
		body   io.Reader
	}

	tests := map[string]struct {
		requests []request

		wantSamples []string
	}{
		"No Requests": {},
		"Single GET Request": {
			requests: []request{
				{method: http.MethodGet, path: validPath, body: nil},
			},
			wantSamples: []string{
				`http_mux_requests_total{code="202",handler="%s",method="get"} 1`,
			},
		},
		"Single GET Request invalid path": {
			requests: []request{
				{method: http.MethodGet, path: "/invalid-path", body: nil},
			},
			wantSamples: []string{
				`http_mux_requests_total{code="404",handler="%s",method="get"} 1`,
			},
		},
		"Multiple Requests": {
			requests: []request{
				{method: http.MethodGet, path: validPath, body: nil},
				{method: http.MethodPost, path: "/invalid-path", body: nil},
				{method: http.MethodPut, path: validPath, body: nil},
				{method: http.MethodGet, path: "/invalid-path", body: nil},
				{method: http.MethodGet, path: validPath, body: nil},
			},
			wantSamples: []string{
				`http_mux_requests_total{code="202",handler="%s",method="get"} 2`,
				`http_mux_requests_total{code="202",handler="%s",method="put"} 1`,
				`http_mux_requests_total{code="404",handler="%s",method="get"} 1`,
				`http_mux_requests_total{code="404",handler="%s",method="post"} 1`,
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := prometheus.NewRegistry()
			mw := metrics.NewMuxMiddleware(reg)

			mux := http.NewServeMux()
			mux.Handle(validPath, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			}))

			monitored := mw.Wrap(name, mux)

			assert.Equal(t, 0, testutil.CollectAndCount(reg, "http_mux_requests_total"),
				"Expected no metrics to be collected before request")

			for _, req := range tc.requests {
				status := http.StatusNotFound
				if req.path == validPath {
					status = http.StatusAccepted
				}
				sendRequest(t, monitored, req.method, req.path, req.body, status)
			}

			expected := ""
			if len(tc.wantSamples) > 0 {
				expected = muxRequestsTotalHeader
				for _, sample := range tc.wantSamples {
					expected += fmt.Sprintf(sample, name) + "\n"
				}
			}
			assert.NoError(t, testutil.CollectAndCompare(reg, strings.NewReader(expected), "http_mux_requests_total"),
				"Collected mux counters do not match expected values")
		})
	}
}
