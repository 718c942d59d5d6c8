package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rueijiunlin-crypto/GEIP/config"
	"github.com/rueijiunlin-crypto/GEIP/site"
)

const requestIDHeader = "X-Request-Id"

type ctxKey int

const requestIDKey ctxKey = iota

// Server ties HTTP handlers to the site service.
type Server struct {
	cfg          *config.Config
	svc          *site.Service
	logger       *slog.Logger
	mux          *http.ServeMux
	serverHeader string
}

// New constructs a server instance.
func New(cfg *config.Config, svc *site.Service, logger *slog.Logger, serverHeader string) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	srv := &Server{cfg: cfg, svc: svc, logger: logger, mux: http.NewServeMux(), serverHeader: strings.TrimSpace(serverHeader)}
	srv.routes()
	return srv
}

// Handler returns the fully wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.withServerHeader(s.withRequestID(s.logRequests(s.mux)))
}

// Start launches the HTTP server and attaches graceful shutdown behaviour.
func (s *Server) Start(ctx context.Context) error {
	// warm the search index without delaying the listener
	go func() {
		if _, err := s.svc.Index(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("search index warm-up", "error", err)
		}
	}()

	listener, err := s.listen(s.cfg.Listen)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
		close(shutdownDone)
	}()

	var serveErr error
	if s.cfg.EnableTLS {
		serveErr = server.ServeTLS(listener, s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		serveErr = server.Serve(listener)
	}

	if errors.Is(serveErr, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return serveErr
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/search/refresh", s.handleSearchRefresh)
	s.mux.HandleFunc("/fragments/search", s.handleSearchFragment)
	s.mux.HandleFunc("/api/lists/{name}", s.handleList)
	s.mux.HandleFunc("/api/lists/{name}/item", s.handleListItem)
	s.mux.HandleFunc("/fragments/lists/{name}", s.handleListFragment)
	s.mux.HandleFunc("/fragments/lists/{name}/item", s.handleListItemFragment)
	s.mux.HandleFunc("/api/news", s.handleNews)
	s.mux.HandleFunc("/fragments/news", s.handleNewsFragment)
	s.mux.HandleFunc("/search-index.json", s.handleSearchIndex)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) listen(address string) (net.Listener, error) {
	if listener, ok, err := s.systemdListener(); err != nil {
		return nil, err
	} else if ok {
		return listener, nil
	}
	if after, ok := strings.CutPrefix(address, "unix:"); ok {
		path := after
		_ = os.Remove(path)
		return net.Listen("unix", path)
	}
	return net.Listen("tcp", address)
}

func (s *Server) systemdListener() (net.Listener, bool, error) {
	pidEnv := strings.TrimSpace(os.Getenv("LISTEN_PID"))
	if pidEnv == "" {
		return nil, false, nil
	}
	pid, err := strconv.Atoi(pidEnv)
	if err != nil || pid != os.Getpid() {
		return nil, false, nil
	}
	fdsEnv := strings.TrimSpace(os.Getenv("LISTEN_FDS"))
	if fdsEnv == "" {
		return nil, false, nil
	}
	fds, err := strconv.Atoi(fdsEnv)
	if err != nil {
		return nil, false, fmt.Errorf("systemd listener: invalid LISTEN_FDS: %w", err)
	}
	if fds <= 0 {
		return nil, false, nil
	}
	const sdListenFdsStart = 3
	file := os.NewFile(uintptr(sdListenFdsStart), fmt.Sprintf("systemd-fd-%d", sdListenFdsStart))
	if file == nil {
		return nil, false, fmt.Errorf("systemd listener: failed to access fd")
	}
	listener, err := net.FileListener(file)
	_ = file.Close()
	if err != nil {
		return nil, false, fmt.Errorf("systemd listener: %w", err)
	}
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")
	return listener, true, nil
}

func (s *Server) withServerHeader(next http.Handler) http.Handler {
	if s.serverHeader == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverHeader)
		next.ServeHTTP(w, r)
	})
}

// withRequestID tags every request with an id, reusing a valid incoming
// X-Request-Id and minting a uuid otherwise.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start), "request_id", requestID(r.Context()))
	})
}

func (s *Server) authorizeRefresh(r *http.Request) bool {
	secret := strings.TrimSpace(s.cfg.RefreshToken)
	if secret == "" {
		return true
	}

	token := strings.TrimSpace(r.Header.Get("Authorization"))
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return false
	}
	return true
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
