package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/odinbook/backend/internal/config"
)

// Server wraps http.Server with the timeouts from config.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on port.
func New(port int, handler http.Handler, timeouts config.HTTPConfig) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeaderTimeout,
			WriteTimeout:      timeouts.WriteTimeout,
		},
	}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
