package config

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codepair-dev/codepair/internal/errors"
)

// Environment variable names.
const (
	EnvAddr            = "CODEPAIR_ADDR"
	EnvLogLevel        = "CODEPAIR_LOG_LEVEL"
	EnvLogFormat       = "CODEPAIR_LOG_FORMAT"
	EnvAllowedOrigins  = "CODEPAIR_ALLOWED_ORIGINS"
	EnvShutdownTimeout = "CODEPAIR_SHUTDOWN_TIMEOUT"
	EnvSendBuffer      = "CODEPAIR_SEND_BUFFER"
	EnvEventBuffer     = "CODEPAIR_EVENT_BUFFER"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":3001"

	// DefaultLogFormat is the default log output format.
	DefaultLogFormat = "text"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultSendBuffer is the per-connection outbound queue length.
	DefaultSendBuffer = 256

	// DefaultEventBuffer is the dispatch queue length.
	DefaultEventBuffer = 1024
)

// Config is the relay server configuration.
type Config struct {
	// Addr is the host:port the server listens on.
	Addr string

	// LogLevel is the minimum level emitted.
	LogLevel slog.Level

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string

	// AllowedOrigins restricts websocket upgrades by Origin header.
	// Empty means any origin is accepted, which is the development
	// default; deployments should set it.
	AllowedOrigins []string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int

	// EventBuffer is the dispatch queue length.
	EventBuffer int
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Addr:            DefaultAddr,
		LogLevel:        slog.LevelInfo,
		LogFormat:       DefaultLogFormat,
		ShutdownTimeout: DefaultShutdownTimeout,
		SendBuffer:      DefaultSendBuffer,
		EventBuffer:     DefaultEventBuffer,
	}
}

// FromEnv reads configuration from the process environment.
func FromEnv() (*Config, error) {
	return fromGetenv(os.Getenv)
}

// fromGetenv is FromEnv with the environment injectable for tests.
func fromGetenv(getenv func(string) string) (*Config, error) {
	cfg := New()

	if v := getenv(EnvAddr); v != "" {
		cfg.Addr = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getenv(EnvAllowedOrigins); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if v := getenv(EnvLogLevel); v != "" {
		level, err := parseLevel(v)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}
	if v := getenv(EnvShutdownTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.New("E103").
				WithDetail(EnvShutdownTimeout + "=" + v).Wrap(err)
		}
		cfg.ShutdownTimeout = d
	}
	for _, f := range []struct {
		env string
		dst *int
	}{
		{EnvSendBuffer, &cfg.SendBuffer},
		{EnvEventBuffer, &cfg.EventBuffer},
	} {
		if v := getenv(f.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errors.New("E100").
					WithDetail(f.env + " must be an integer, got " + strconv.Quote(v)).Wrap(err)
			}
			*f.dst = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(v string) (slog.Level, error) {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.New("E102").WithDetail(EnvLogLevel + "=" + v)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.New("E101").
			WithDetail(EnvAddr + "=" + c.Addr).Wrap(err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.New("E100").
			WithDetail(EnvLogFormat + " must be \"text\" or \"json\", got " + strconv.Quote(c.LogFormat))
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("E103").
			WithDetail(EnvShutdownTimeout + " must be positive")
	}
	if c.SendBuffer <= 0 || c.EventBuffer <= 0 {
		return errors.New("E100").
			WithDetail("buffer sizes must be positive")
	}
	return nil
}

// Logger builds the process logger from the configured level and
// format.
func (c *Config) Logger(w *os.File) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// CheckOrigin returns the websocket upgrade origin policy. With no
// configured origins every origin passes.
func (c *Config) CheckOrigin() func(*http.Request) bool {
	if len(c.AllowedOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}

	allowed := make(map[string]struct{}, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Same-origin and non-browser clients send no Origin.
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
