// Package server runs the client's HTTP API and stops it on signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const stopWaitTime = 5 * time.Second

type Config struct {
	Host              string        `env:"HOST"                envDefault:"localhost"`
	Port              string        `env:"PORT"                envDefault:""`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
}

type Server struct {
	name    string
	server  *http.Server
	cancel  context.CancelFunc
	logger  *slog.Logger
	address string
}

func NewServer(ctx context.Context, cancel context.CancelFunc, name string, cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	address := net.JoinHostPort(cfg.Host, cfg.Port)

	return &Server{
		name: name,
		server: &http.Server{
			Addr:              address,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		},
		cancel:  cancel,
		logger:  logger,
		address: address,
	}
}

func (s *Server) Start() error {
	s.logger.Info(fmt.Sprintf("%s service HTTP server listening at %s", s.name, s.address))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.cancel()

		return err
	}

	return nil
}

func (s *Server) Stop() error {
	defer s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), stopWaitTime)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("%s service error occurred during shutdown at %s: %s", s.name, s.address, err))

		return fmt.Errorf("%s service occurred during shutdown at %s: %w", s.name, s.address, err)
	}
	s.logger.Info(fmt.Sprintf("%s HTTP service shutdown of http at %s", s.name, s.address))

	return nil
}

// StopSignalHandler stops the server on SIGINT or SIGTERM, or when ctx ends.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, server *Server) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		defer cancel()
		if err := server.Stop(); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, sig))

		return nil
	case <-ctx.Done():
		return server.Stop()
	}
}
