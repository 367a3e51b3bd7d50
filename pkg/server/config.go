package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the relay server.
type Config struct {
	// Address is the listen address for the HTTP server.
	Address string

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// WriteTimeout bounds a single outbound frame write.
	WriteTimeout time.Duration

	// PongTimeout is how long a connection may stay silent before the
	// read side gives up. Pings go out every PingInterval.
	PongTimeout  time.Duration
	PingInterval time.Duration

	// SendBuffer is the per-session outbound queue length. A session
	// whose queue fills is disconnected rather than allowed to stall
	// the dispatch loop.
	SendBuffer int

	// EventBuffer is the dispatch queue length shared by all sessions.
	EventBuffer int

	// CheckOrigin validates websocket upgrade origins.
	// Defaults to accepting all origins.
	CheckOrigin func(r *http.Request) bool

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration

	// Registry receives the server's Prometheus metrics.
	// Defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Logger is the base logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":3001",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingInterval:    54 * time.Second,
		SendBuffer:      256,
		EventBuffer:     1024,
		CheckOrigin:     func(*http.Request) bool { return true },
		ShutdownTimeout: 10 * time.Second,
		Registry:        prometheus.DefaultRegisterer,
		Logger:          nil,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = d.PingInterval
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = d.CheckOrigin
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Registry == nil {
		c.Registry = d.Registry
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
