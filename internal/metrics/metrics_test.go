package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Counters(t *testing.T) {
	s := New()
	s.ObserveQuery("password_reset", "reset_password", 15*time.Millisecond)
	s.ObserveQuery("general_query", "", time.Millisecond)
	s.ObserveQuery("general_query", "", time.Millisecond)
	s.Degraded("synthesizer", "model failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.queries.WithLabelValues("password_reset", "reset_password")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.queries.WithLabelValues("general_query", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.degraded.WithLabelValues("synthesizer", "model failed")))
}

func TestService_NilIsNoop(t *testing.T) {
	var s *Service
	assert.NotPanics(t, func() {
		s.ObserveQuery("greeting", "", time.Second)
		s.Degraded("retriever", "x")
	})
}

func TestService_HandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New()
	r := gin.New()
	r.Use(s.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(s.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `supportbot_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}
