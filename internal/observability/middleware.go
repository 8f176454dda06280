package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestID tags each request with an id, reusing one supplied by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// route is the registered route pattern, or the raw path for unmatched
// requests.
func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// RequestLogger writes one line per request. An /events subscription is
// logged once it ends, as "events_session" with the subscription lifetime as
// its duration; everything else is "http_request".
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := websocket.IsWebSocketUpgrade(c.Request)
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case upgrade:
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		msg := "http_request"
		if upgrade {
			msg = "events_session"
		}

		event.
			Str(requestIDKey, c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("route", route(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg(msg)
	}
}

// RequestMetricsMiddleware feeds wlprobe_http_* by route. Websocket sessions
// are excluded from the latency histogram since their duration is a
// subscription lifetime.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := websocket.IsWebSocketUpgrade(c.Request)
		c.Next()

		if upgrade {
			RecordHTTPSession(c.Request.Method, route(c), c.Writer.Status())
			return
		}
		RecordHTTPRequest(c.Request.Method, route(c), c.Writer.Status(), time.Since(start))
	}
}
