// Package server exposes the bridge modules over HTTP.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diwenne/smashspeed-rn/internal/bridge"
	"github.com/diwenne/smashspeed-rn/internal/server/router"
	"github.com/diwenne/smashspeed-rn/internal/util"
	"github.com/diwenne/smashspeed-rn/internal/version"
)

// Server serves the registered bridge methods and finished clips.
type Server struct {
	port       int
	cacheDir   string
	httpServer *http.Server
	mux        *http.ServeMux
	dispatcher *bridge.Dispatcher
	access     *logrus.Logger
	log        *util.Logger

	// State
	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// NewServer creates a server on port dispatching to d. access receives one
// line per request; nil means logrus' standard logger.
func NewServer(port int, cacheDir string, d *bridge.Dispatcher, access *logrus.Logger) *Server {
	if access == nil {
		access = logrus.StandardLogger()
	}
	s := &Server{
		port:       port,
		cacheDir:   cacheDir,
		mux:        http.NewServeMux(),
		dispatcher: d,
		access:     access,
		log:        util.ComponentLogger("server"),
		startTime:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.access, s.mux)
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.mu.Lock()
	s.startTime = time.Now()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Infof("listening on :%d, clips in %s", s.port, s.cacheDir)
	err := srv.ListenAndServe()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down and waits for running jobs.
func (s *Server) Stop() error {
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warnf("HTTP server shutdown error: %v", err)
			if err := srv.Close(); err != nil {
				s.log.Errorf("HTTP server force close error: %v", err)
			}
		}
	}
	s.dispatcher.Wait()

	s.log.Infof("server stopped")
	return nil
}

func (s *Server) setupRoutes() {
	routers := []router.Router{
		&router.APIRouter{},
	}
	for _, r := range routers {
		r.RegisterRoutes(s.mux, s)
		s.log.Debugf("registered routes under %s", r.GetPathPrefix())
	}
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// GetUptime returns server uptime
func (s *Server) GetUptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// GetVersion returns version info
func (s *Server) GetVersion() string {
	return version.Version
}

func (s *Server) GetCacheDir() string {
	return s.cacheDir
}

func (s *Server) GetDispatcher() *bridge.Dispatcher {
	return s.dispatcher
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lw.status == 0 {
		lw.status = http.StatusOK
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.length += n
	return n, err
}

// Hijack lets websocket upgrades pass through the access log.
func (lw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lw.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

func loggingMiddleware(access *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		access.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   lw.status,
			"bytes":    lw.length,
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}).Info("request")
	})
}
