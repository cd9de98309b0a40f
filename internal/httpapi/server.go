package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/httpapi/middleware"
	"github.com/collabwsd/wsd/internal/master"
	"github.com/collabwsd/wsd/internal/metrics"
)

// Server is the master process's HTTP front door: the client and
// worker WebSocket upgrade endpoints, plus /metrics and /healthz.
type Server struct {
	router  *master.Router
	metrics *metrics.Metrics
	log     *zap.Logger
	engine  *gin.Engine
	http    *http.Server
}

// Options configures Server.
type Options struct {
	Addr            string
	CORS            middleware.CORSConfig
	RateLimit       middleware.RateLimitConfig
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// NewServer builds the gin engine and registers routes. metrics may be
// nil to disable instrumentation.
func NewServer(router *master.Router, m *metrics.Metrics, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	eng := gin.New()
	eng.Use(gin.Recovery())
	eng.Use(middleware.CORS(opts.CORS))
	if opts.RateLimit.Enabled {
		eng.Use(middleware.RateLimit(opts.RateLimit))
	}

	s := &Server{router: router, metrics: m, log: log, engine: eng}

	eng.GET("/ws", s.handleClientWS)
	eng.GET("/collabws/child/:sessionId", s.handleWorkerWS)
	eng.GET("/healthz", s.handleHealthz)
	if m != nil {
		eng.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 0 // WebSocket connections are long-lived; no write deadline.
	}

	s.http = &http.Server{
		Addr:        opts.Addr,
		Handler:     eng,
		ReadTimeout: readTimeout,
	}
	return s
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"clients":  s.router.Clients().Len(),
		"workers":  s.router.Prisoners().Len(),
	})
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops accepting new connections and waits for
// in-flight requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
