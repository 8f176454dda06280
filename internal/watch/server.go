package watch

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/observability"
	"github.com/danmuck/wlprobe/internal/wayland"
)

const shutdownTimeout = 5 * time.Second

// Source is the registry state served over HTTP.
type Source interface {
	Globals() []wayland.Global
	Lookup(iface string, minVersion uint32) (wayland.Global, bool)
}

type Options struct {
	Addr        string
	CorsOrigins []string
	Socket      string
	Version     string
}

type Server struct {
	Appeared time.Time

	opts   Options
	source Source
	hub    *Hub
	router *gin.Engine

	mu      sync.Mutex
	pumpErr error
}

func New(opts Options, source Source, hub *Hub) *Server {
	observability.RegisterMetrics()
	if hub == nil {
		hub = NewHub(nil)
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(observability.ComponentLogger("watch")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", observability.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Appeared: time.Now(),
		opts:     opts,
		source:   source,
		hub:      hub,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// SetPumpError marks the server not ready. The first error wins.
func (s *Server) SetPumpError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pumpErr == nil {
		s.pumpErr = err
	}
}

func (s *Server) PumpError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpErr
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":      "ok",
			"ready":       true,
			"uptime":      time.Since(s.Appeared).String(),
			"service":     "wlprobe",
			"version":     s.opts.Version,
			"socket":      s.opts.Socket,
			"globals":     len(s.source.Globals()),
			"subscribers": s.hub.Count(),
		}
		status := http.StatusOK
		if err := s.PumpError(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["ready"] = false
			body["error"] = err.Error()
		}
		c.JSON(status, body)
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/globals", func(c *gin.Context) {
		iface := strings.TrimSpace(c.Query("interface"))
		rawMin := strings.TrimSpace(c.Query("min_version"))
		if iface == "" {
			if rawMin != "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "min_version requires interface"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"globals": s.source.Globals()})
			return
		}

		var minVersion uint32
		if rawMin != "" {
			v, err := strconv.ParseUint(rawMin, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_version: " + rawMin})
				return
			}
			minVersion = uint32(v)
		}
		g, ok := s.source.Lookup(iface, minVersion)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "no global for " + iface + " at version " + strconv.FormatUint(uint64(minVersion), 10),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"global": g})
	})

	s.router.GET("/events", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request, s.source.Globals)
	})
}

// Run serves until ctx is done, then shuts down and disconnects subscribers.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logs.Infof("watch.Server listening addr=%s", s.opts.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logs.Infof("watch.Server stopped addr=%s", s.opts.Addr)
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
