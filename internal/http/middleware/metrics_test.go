package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndFallsBackToRawPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/scans/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/analyze", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/scans/:id", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scans/a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/scans/b", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("payload")))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/scans/:id", "200")); got != baseRoute+2 {
		t.Fatalf("route counter = %v; want %v", got, baseRoute+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/missing", "404")); got != base404+1 {
		t.Fatalf("fallback counter = %v; want %v", got, base404+1)
	}
	if testutil.CollectAndCount(httpReqSize) == 0 {
		t.Fatalf("request size histogram not observed")
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight should return to 0, got %v", got)
	}
}

func TestMetrics_EventStreamsTrackedOnGauge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())

	var during float64
	r.GET("/events", func(c *gin.Context) {
		during = testutil.ToFloat64(httpStreams)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if during < 1 {
		t.Fatalf("stream gauge during request = %v; want >= 1", during)
	}
	if got := testutil.ToFloat64(httpStreams); got != 0 {
		t.Fatalf("stream gauge after request = %v; want 0", got)
	}
}
