package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/config"
)

// Server wraps the HTTP server with its middleware chain
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	cfg        config.ServerConfig
}

// NewServer builds the server around the handler set
func NewServer(cfg *config.Config, handler *Handler, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	var chained http.Handler = mux
	chained = rateLimiter(cfg.Security.RateLimit)(chained)
	chained = requestLogger(logger)(chained)
	chained = recoverer(logger)(chained)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      chained,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		logger: logger,
		cfg:    cfg.Server,
	}
}

// Start blocks serving requests until the listener closes
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
