package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Listener is the part of *http.Server the service drives.
type Listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Service runs an HTTP server under a suture supervisor and shuts it down
// gracefully when the supervisor stops.
type Service struct {
	server          Listener
	shutdownTimeout time.Duration
}

func NewService(server Listener, shutdownTimeout time.Duration) *Service {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &Service{server: server, shutdownTimeout: shutdownTimeout}
}

func (s *Service) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *Service) String() string {
	return "http-server"
}
