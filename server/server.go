package server

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cnosuke/rigil-proxy/config"
	"github.com/cnosuke/rigil-proxy/transducer"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server serves the proxy, the JSON API and key administration.
type Server struct {
	cfg    *config.Config
	comps  *Components
	router *gin.Engine
}

// New builds the router over comps.
func New(cfg *config.Config, comps *Components) *Server {
	if cfg.Server.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, comps: comps}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), s.comps.Metrics.Middleware())

	router.GET("/", s.handleHome)
	router.GET("/api/docs", s.handleDocs)
	router.GET("/admin", s.handleAdminPage)
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(s.comps.Metrics.Handler()))

	proxyPath := s.cfg.Server.ProxyPath
	if proxyPath == "" {
		proxyPath = transducer.DefaultProxyPath
	}
	router.GET(proxyPath, s.handleProxy)

	api := router.Group("/api")
	api.GET("/process", s.handleProcessGet)
	api.POST("/process", s.handleProcessPost)

	keys := api.Group("/keys")
	keys.POST("/create", s.handleCreateKey)
	keys.GET("/usage", s.handleUsage)
	keys.GET("/list", s.requireAdmin, s.handleListKeys)
	keys.GET("/stats", s.requireAdmin, s.handleStats)
	keys.DELETE("/delete", s.requireAdmin, s.handleDeleteKey)

	return router
}

// Run - Execute the HTTP server until SIGINT or SIGTERM
func Run(cfg *config.Config, name string, version string, revision string) error {
	zap.S().Infow("starting HTTP server",
		"name", name,
		"version", versionString(version, revision))

	comps, err := NewComponents(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			zap.S().Warnw("failed to close ledger", "error", err)
		}
	}()

	if cfg.Admin.Key == "" {
		zap.S().Warnw("admin key not configured, key administration is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           New(cfg, comps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zap.S().Errorw("server failed", "error", err)
			return errors.Wrap(err, "failed to serve")
		}
		return nil
	case <-ctx.Done():
	}

	zap.S().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down")
	}
	return nil
}

func versionString(version, revision string) string {
	if revision != "" && revision != "xxx" {
		return version + " (" + revision + ")"
	}
	return version
}

// requestLogger logs one line per request through zap.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zap.S().Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"client_ip", c.ClientIP())
	}
}
