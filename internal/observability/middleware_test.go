package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/wlprobe/internal/testutil/testlog"
)

func newTestRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.New(buf)), RequestMetricsMiddleware())
	r.GET("/globals", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequestLoggerTagsRouteAndRequestID(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newTestRouter(&buf)

	req := httptest.NewRequest(http.MethodGet, "/globals?interface=wl_seat", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	line := buf.String()
	for _, want := range []string{`"message":"http_request"`, `"request_id":"abc123"`, `"route":"/globals"`, `"status":200`} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %s: %s", want, line)
		}
	}
	if rr.Header().Get(RequestIDHeader) != "abc123" {
		t.Fatalf("request id not echoed")
	}
}

func TestEventsUpgradeLoggedAsSession(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	r := newTestRouter(&buf)

	counter := httpRequests.WithLabelValues(http.MethodGet, "/events", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"message":"events_session"`) {
		t.Fatalf("expected events_session line: %s", buf.String())
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("session not counted: got=%v want=%v", got, before+1)
	}
}
