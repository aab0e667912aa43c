package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// scanServicePrefix namespaces per-scan health entries.
const scanServicePrefix = "swarm.scan."

// Config holds control server configuration.
type Config struct {
	// Port is the TCP port on which the gRPC server listens.
	// Default: 50051. Port 0 picks any free port.
	Port int

	// GracefulTimeout is the maximum duration to wait for active
	// requests to complete during graceful shutdown.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// TLSCertFile is the path to the TLS certificate file.
	// If empty, TLS is disabled.
	TLSCertFile string

	// TLSKeyFile is the path to the TLS private key file.
	// If empty, TLS is disabled.
	TLSKeyFile string

	// Logger receives server lifecycle events.
	Logger *slog.Logger
}

// DefaultConfig returns defaults suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Port:            50051,
		GracefulTimeout: 30 * time.Second,
	}
}

// Server wraps a gRPC server with lifecycle management and the health
// service used to report scan liveness.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	config       *Config
	healthServer *health.Server
	log          *slog.Logger
}

// NewServer creates the control server and registers the health service.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
	}

	var opts []grpc.ServerOption
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer:   grpcServer,
		listener:     listener,
		config:       cfg,
		healthServer: healthServer,
		log:          logger,
	}, nil
}

// GRPCServer returns the underlying gRPC server so callers can register
// additional services before Serve.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HealthServer returns the health check server.
func (s *Server) HealthServer() *health.Server {
	return s.healthServer
}

// MarkScanRunning exposes a scan as SERVING under its health name.
func (s *Server) MarkScanRunning(scanID string) {
	s.healthServer.SetServingStatus(scanServicePrefix+scanID, grpc_health_v1.HealthCheckResponse_SERVING)
}

// MarkScanDone flips a scan's health name to NOT_SERVING.
func (s *Server) MarkScanDone(scanID string) {
	s.healthServer.SetServingStatus(scanServicePrefix+scanID, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Serve starts the gRPC server and blocks until shutdown. Shutdown is
// triggered by context cancellation or SIGINT/SIGTERM.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case sig := <-sigCh:
		s.log.Info("received signal, shutting down gracefully", "signal", sig.String())
		s.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop immediately stops the gRPC server, terminating active RPCs.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop stops accepting new connections and waits for active
// RPCs up to the configured timeout before forcing a stop.
func (s *Server) GracefulStop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("control server stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("graceful shutdown timeout, forcing stop")
		s.grpcServer.Stop()
	}
}

// Port returns the port the server is listening on. Useful with port 0.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}
