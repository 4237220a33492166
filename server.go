package decryptfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Server serves an http.Handler over a Unix socket with graceful shutdown.
// It sets no write timeout: bodies are streamed for as long as the client
// keeps reading.
type Server struct {
	path            string
	server          *http.Server
	log             logrus.FieldLogger
	shutdownTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer creates a server for handler bound to the socket at path
func NewServer(path string, handler http.Handler, shutdownTimeout time.Duration, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		path: path,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		log:             log,
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Listen binds the socket, replacing a stale socket file left by a
// previous run.
func (s *Server) Listen() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket %s: %w", s.path, err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)
	return nil
}

// Ready is closed once the socket is bound
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections until ctx is done, then shuts down gracefully.
// Listen is called first if it has not been.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		ln = s.listener
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("socket", s.path).Info("serving")
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown stops accepting connections and waits up to the shutdown timeout
// for in-flight responses to finish.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.log.WithField("timeout", s.shutdownTimeout.String()).Info("initiating graceful shutdown")
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Error("error during shutdown")
		return err
	}
	s.log.Info("server shutdown complete")
	return nil
}
