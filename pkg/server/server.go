package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codepair-dev/codepair/pkg/room"
)

// Server is the HTTP/websocket front of the relay.
type Server struct {
	config   *Config
	registry *room.Registry
	router   *Router
	upgrader websocket.Upgrader

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a relay server. Unset config fields take defaults.
func New(config *Config) *Server {
	config = config.withDefaults()
	logger := config.Logger.With("component", "server")

	registry := room.NewRegistry(config.Logger)
	m := newMetrics(config.Registry)
	router := newRouter(config, registry, m, config.Logger)

	s := &Server{
		config:   config,
		registry: registry,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}
	s.httpServer = &http.Server{
		Addr:    config.Address,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the HTTP routes: the websocket endpoint, a health
// check, and Prometheus metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealthz)
	if g, ok := s.config.Registry.(prometheus.Gatherer); ok {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// Start listens on the configured address and serves. Blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve runs the dispatch loop and the HTTP server on l. Blocks until
// the listener fails or Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	go s.router.Run()
	s.logger.Info("listening", "address", l.Addr().String())

	err := s.httpServer.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for the HTTP server to
// drain within the config's shutdown timeout, then stops the dispatch
// loop. Room state is not persisted: rooms die with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.router.Stop()
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := newSession(uuid.NewString(), conn, s.router, s.config, s.config.Logger)
	s.logger.Debug("connection upgraded", "session", sess.ID, "remote", r.RemoteAddr)

	// Register before the pumps start so the connect event dispatches
	// ahead of any frame from this connection.
	s.router.Connect(sess)
	go sess.WritePump()
	go sess.ReadPump()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
