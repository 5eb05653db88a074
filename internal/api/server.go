package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Project-Sylos/Archivist/internal/types"
	"github.com/Project-Sylos/Archivist/sdk"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server represents the HTTP API server
type Server struct {
	router    *chi.Mux
	archivist *sdk.Archivist
	config    *types.APIConfig
	http      *http.Server
}

// NewServer creates a new API server
func NewServer(archivist *sdk.Archivist, config *types.APIConfig) *Server {
	router := NewRouter(archivist, config)
	mux := router.SetupRoutes()

	return &Server{
		router:    mux,
		archivist: archivist,
		config:    config,
		http: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler: mux,
			// no WriteTimeout: slow uploads are bounded by the timeout middleware
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	logger := s.archivist.Logger()
	logger.Info("starting Archivist API server",
		zap.String("addr", s.http.Addr),
		zap.String("binding", s.archivist.Config().Repository.Binding),
		zap.Bool("test_endpoint", s.config.EnableTestEndpoint))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// GetRouter returns the configured router
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires and then releases the Archivist
func (s *Server) Shutdown(ctx context.Context) error {
	s.archivist.Logger().Info("shutting down Archivist API server")
	err := s.http.Shutdown(ctx)
	if cerr := s.archivist.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
