package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/zero-day-ai/semgate/graph"
	"github.com/zero-day-ai/semgate/semerr"
)

// ServicePrefix prefixes the per-framework health service names.
const ServicePrefix = "semgate.graph."

// ServiceName returns the health service name reported for framework.
func ServiceName(framework string) string {
	return ServicePrefix + graph.FrameworkKey(framework)
}

// Config holds serve configuration.
type Config struct {
	// Port is the TCP port of the gRPC health server. Use 0 for any free port.
	// Default: 50051
	Port int

	// GracefulTimeout bounds graceful shutdown before the server is stopped.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// MetricsAddr is the HTTP listen address for MetricsHandler, such as
	// ":9090". Empty disables the HTTP endpoint.
	MetricsAddr string

	// MetricsHandler is served at /metrics on MetricsAddr.
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// DefaultConfig returns default serve configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:            50051,
		GracefulTimeout: 30 * time.Second,
	}
}

// Server exposes knowledge graph availability over the gRPC health protocol:
// one service per framework, SERVING while its graph is loaded. The empty
// service name reports SERVING while at least one graph is loaded.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	config       *Config
	healthServer *health.Server
	httpServer   *http.Server
	logger       *slog.Logger
}

// NewServer listens on the configured port and registers the health service.
func NewServer(cfg *Config) (*Server, error) {
	const op = "serve.NewServer"
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, semerr.Network(op, fmt.Errorf("listen on port %d: %w", cfg.Port, err))
	}

	var opts []grpc.ServerOption
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			_ = listener.Close()
			return nil, semerr.Configuration(op, fmt.Errorf("load TLS credentials: %w", err))
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	s := &Server{
		grpcServer:   grpcServer,
		listener:     listener,
		config:       cfg,
		healthServer: healthServer,
		logger:       logger,
	}
	if cfg.MetricsAddr != "" && cfg.MetricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", cfg.MetricsHandler)
		s.httpServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}
	return s, nil
}

// TrackGraphs mirrors store's frameworks into health statuses. Loaded
// frameworks are SERVING; removed ones become NOT_SERVING.
func (s *Server) TrackGraphs(store *graph.Store) {
	store.OnChange(func(c graph.Change) {
		switch c.Kind {
		case graph.ChangeLoaded:
			s.healthServer.SetServingStatus(ServiceName(c.Framework), grpc_health_v1.HealthCheckResponse_SERVING)
		case graph.ChangeRemoved:
			s.healthServer.SetServingStatus(ServiceName(c.Framework), grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		}
		s.setOverall(len(store.Frameworks()) > 0)
	})
	for _, fw := range store.Frameworks() {
		s.healthServer.SetServingStatus(ServiceName(fw), grpc_health_v1.HealthCheckResponse_SERVING)
	}
	s.setOverall(len(store.Frameworks()) > 0)
}

func (s *Server) setOverall(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", status)
}

// GRPCServer returns the underlying gRPC server so callers can register
// additional services.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HealthServer returns the health check server.
func (s *Server) HealthServer() *health.Server {
	return s.healthServer
}

// Serve starts the servers and blocks until ctx is done, SIGINT or SIGTERM
// arrives, or a server fails.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	if s.httpServer != nil {
		go func() {
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}
	s.logger.Info("serving", "port", s.Port(), "metrics_addr", s.config.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case sig := <-sigCh:
		s.logger.Info("received signal, shutting down", "signal", sig.String())
		s.GracefulStop()
		return nil
	case err := <-errCh:
		s.Stop()
		return err
	}
}

// Stop immediately stops the servers.
func (s *Server) Stop() {
	s.healthServer.Shutdown()
	s.grpcServer.Stop()
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
}

// GracefulStop marks every service NOT_SERVING, then waits up to the
// configured timeout for active RPCs before forcing a stop.
func (s *Server) GracefulStop() {
	s.healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("metrics server shutdown", "error", err)
		}
	}

	select {
	case <-done:
		s.logger.Info("server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop")
		s.grpcServer.Stop()
	}
}

// Port returns the port the gRPC server listens on.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}
