package serve

import (
	"log/slog"
	"net/http"
	"time"
)

// Option is a functional option for configuring a Server.
type Option func(*Config)

// New builds a Server from DefaultConfig with opts applied.
//
// Example:
//
//	srv, err := serve.New(serve.WithPort(50051), serve.WithMetrics(":9090", collector.Handler()))
func New(opts ...Option) (*Server, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewServer(cfg)
}

// WithPort sets the TCP port for the gRPC server.
// Use port 0 to automatically select an available port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithGracefulShutdown sets the maximum duration to wait for active
// requests to complete during graceful shutdown.
// After this timeout, the server will force shutdown.
func WithGracefulShutdown(timeout time.Duration) Option {
	return func(c *Config) {
		c.GracefulTimeout = timeout
	}
}

// WithTLS enables TLS encryption for the gRPC server.
// Both certFile and keyFile must be valid paths to PEM-encoded files.
// If either path is empty, TLS will be disabled.
func WithTLS(certFile, keyFile string) Option {
	return func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	}
}

// WithMetrics serves handler at /metrics on addr. An empty addr or nil
// handler leaves the HTTP endpoint disabled.
func WithMetrics(addr string, handler http.Handler) Option {
	return func(c *Config) {
		c.MetricsAddr = addr
		c.MetricsHandler = handler
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
