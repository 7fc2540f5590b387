// Package httpapi exposes the explorer service over HTTP: schema inference
// and buffered finds as JSON, streaming queries as Server-Sent Events.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/explorer"
	"github.com/IngaleChinmay04/MongoNexus/internal/logger"
	"github.com/IngaleChinmay04/MongoNexus/internal/metrics"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

const healthTimeout = 2 * time.Second

// Server routes HTTP requests to an explorer.Service.
type Server struct {
	svc     *explorer.Service
	cfg     config.ServerConfig
	metrics *metrics.Metrics
	logger  *logger.Logger
	router  *gin.Engine
}

// New builds the router. m may be nil, in which case /metrics is not served.
func New(svc *explorer.Service, cfg config.ServerConfig, m *metrics.Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	s := &Server{svc: svc, cfg: cfg, metrics: m, logger: log}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log, m))
	if cfg.CORSOrigin != "" {
		router.Use(corsMiddleware(cfg.CORSOrigin))
	}

	router.GET("/healthz", s.health)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := router.Group("/api")

	mongo := api.Group("/mongo")
	mongo.POST("/find", s.find)
	mongo.POST("/schema", s.inferSchema)
	mongo.POST("/schema/jsonschema", s.inferJSONSchema)
	mongo.GET("/collections", s.listCollections)

	streams := api.Group("/stream")
	streams.POST("/find", s.streamQuery(false))
	streams.POST("/aggregate", s.streamQuery(true))

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// Request contexts derive from ctx, so open streams are cancelled and
// release their cursors on shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("HTTP server listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
