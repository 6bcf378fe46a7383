package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordFetch("ok", 120*time.Millisecond)
	m.RecordFetch("timeout", time.Second)
	m.RecordFetch("ok", 10*time.Millisecond)
	m.RecordBytes(1000, 250)
	m.RecordLedgerError("record_usage")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.Bytes.WithLabelValues("original")))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.Bytes.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerErrors.WithLabelValues("record_usage")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordFetch("ok", time.Second)
		m.RecordBytes(1, 1)
		m.RecordLedgerError("x")
	})
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/"+string(rune('a'+i)), nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/items/:id", "200")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rigil_proxy_http_requests_total{method="GET",path="/items/:id",status="200"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
