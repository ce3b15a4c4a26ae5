// Package server runs the inbound HTTP transport with graceful shutdown on
// SIGTERM/SIGINT/SIGQUIT.
package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/logger"
)

// Server owns the HTTP listener lifecycle.
type Server struct {
	httpServer *http.Server
	onShutdown []func()
	logger     *logger.Logger
}

// NewServer builds a Server over the given handler. onShutdown hooks run
// after the listener has drained, in registration order.
func NewServer(handler http.Handler, cfg config.Server, log *logger.Logger, onShutdown ...func()) *Server {
	log.Info().Str("address", cfg.Address).Msg("creating new server...")

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
		},
		onShutdown: onShutdown,
		logger:     log,
	}
}

// Run serves until a stop signal arrives, then shuts down gracefully.
func (s *Server) Run() error {
	idleConnectionsClosed := make(chan struct{})
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	// listen for stop signals
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		for _, hook := range s.onShutdown {
			hook()
		}

		close(idleConnectionsClosed)
	}()

	s.logger.Info().Msg("launching HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-idleConnectionsClosed
	s.logger.Info().Msg("server shutdown gracefully")

	return nil
}
