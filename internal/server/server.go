// Package server exposes an optz pipeline over HTTP.
//
// Routes:
//
//	POST /optimize        multipart upload, field "file"
//	POST /optimizeEdited  text/plain body
//	GET  /download        echo code back as an attachment
//	GET  /passes          pass catalogue
//	GET  /healthz         liveness and run counters
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zoobzio/optz"
	"github.com/zoobzio/optz/internal/logging"
)

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 10 * time.Second

// Server wraps the HTTP router and the pipeline it serves.
type Server struct {
	router   *gin.Engine
	pipeline *optz.Pipeline
	logger   *logging.Logger
}

// New creates a server around p. Finished runs are logged through logger.
func New(p *optz.Pipeline, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	s := &Server{
		router:   router,
		pipeline: p,
		logger:   logger,
	}

	_ = p.OnRunComplete(func(_ context.Context, e optz.PipelineEvent) error { //nolint:errcheck
		logger.Run(e)
		return nil
	})
	_ = p.OnPassComplete(func(_ context.Context, e optz.PipelineEvent) error { //nolint:errcheck
		logger.Pass(e)
		return nil
	})

	router.POST("/optimize", s.Optimize)
	router.POST("/optimizeEdited", s.OptimizeEdited)
	router.GET("/download", s.Download)
	router.GET("/passes", s.Passes)
	router.GET("/healthz", s.Health)

	return s
}

// Handler returns the router for use with net/http or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting optz server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down optz server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		logger.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
