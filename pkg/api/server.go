// Package api serves the dashboard views over HTTP and pushes view changes to websocket
// subscribers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ava-labs/transfer-dashboard/pkg/metrics"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

const shutdownTimeout = 10 * time.Second

// Config holds the listener settings.
type Config struct {
	Host         string        `env:"HTTP_HOST"`
	Port         int           `env:"HTTP_PORT"          envDefault:"8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
}

// LoadConfig loads the listener settings from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse api config: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server exposes the board as a JSON API and a websocket feed.
type Server struct {
	cfg      Config
	board    *views.Board
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics // nil if metrics disabled
	stopHub  context.CancelFunc
	pongWait time.Duration
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics enables metrics collection for the server and its websocket hub.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithPongWait sets how long a websocket peer may leave a ping unanswered before it is
// disconnected. Pings are sent every half of d.
func WithPongWait(d time.Duration) Option {
	return func(s *Server) {
		s.pongWait = d
	}
}

// NewServer creates a server for board and subscribes its hub to every view.
func NewServer(cfg Config, board *views.Board, log *zap.SugaredLogger, opts ...Option) (*Server, error) {
	if board == nil {
		return nil, errors.New("invalid board: must not be nil")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: must be between 0 and 65535, got %d", cfg.Port)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &Server{
		cfg:    cfg,
		board:  board,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(log, s.metrics)
	if s.pongWait > 0 {
		s.hub.pongWait = s.pongWait
	}
	board.OnChange(s.hub.Broadcast)

	// The hub runs for the server's lifetime so Handler can be mounted without Run.
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go s.hub.Run(hubCtx)

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleSubscribe)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/views", s.handleViews).Methods(http.MethodGet)
	api.HandleFunc("/views/refresh", s.handleRefreshAll).Methods(http.MethodPost)
	api.HandleFunc("/views/{kind}", s.handleView).Methods(http.MethodGet)
	api.HandleFunc("/views/{kind}/refresh", s.handleRefresh).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects every websocket client and stops the hub. It is called by Run on
// return; a server used only through Handler must call it itself.
func (s *Server) Close() {
	s.stopHub()
}

// Run serves until ctx is done, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("starting api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown api server: %w", err)
	}
	s.log.Info("api server stopped")
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
