// Package server hosts the localhost HTTP server for the status API and the
// Prometheus metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
)

// Server manages the localhost HTTP server
type Server struct {
	config     Config
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
	port       int
	log        *logger.Logger
	mu         sync.Mutex
	running    bool
}

// Config holds server configuration
type Config struct {
	Port            int           // Port to listen on (0 = random)
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	Logger          *logger.Logger
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Port:            18765,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    20 * time.Second, // toggles may wait for a connect or drain
		ShutdownTimeout: 5 * time.Second,
	}
}

// New creates a new HTTP server. Routes are registered on Mux before Start.
func New(config Config) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		config: config,
		mux:    mux,
		port:   config.Port,
		log:    config.Logger,
	}
}

// Mux returns the router for registering handlers
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Handle registers handler at path
func (s *Server) Handle(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	// Localhost only
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{
		Handler:      corsMiddleware(s.mux),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func(srv *http.Server, ln net.Listener, port int) {
		s.log.Info("HTTP server listening on http://127.0.0.1:%d", port)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}(s.httpServer, listener, s.port)

	s.running = true
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.running = false
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

// Port returns the port the server is listening on
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the full URL to the server
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// corsMiddleware adds CORS headers for localhost-only access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isLocalOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}
