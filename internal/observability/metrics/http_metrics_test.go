package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_RecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "boostd-test"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/boosts/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, id := range []string{"1", "2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/boosts/"+id, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/boosts/:id", "404")))

	families, err := registry.Gather()
	require.NoError(t, err)

	var latency *dto.MetricFamily
	for _, family := range families {
		if family.GetName() == "boostd_http_request_duration_seconds" {
			latency = family
		}
	}
	require.NotNil(t, latency)
	require.Len(t, latency.GetMetric(), 1)

	metric := latency.GetMetric()[0]
	assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())

	labels := map[string]string{}
	for _, pair := range metric.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	assert.Equal(t, "boostd-test", labels["service"])
	assert.Equal(t, "/api/boosts/:id", labels["route"])
}

func TestHTTPMetrics_NilIsSafe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var m *HTTPMetrics

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
