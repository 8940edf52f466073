package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

// ServiceName is the health service name reported for the ledger.
const ServiceName = "ledger"

// NewServer creates a gRPC server exposing the standard health service and reflection.
func NewServer(healthServer *health.Server, opts ...grpc.ServerOption) *grpc.Server {
	server := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	return server
}

// HealthWatcher keeps the health status in sync with store connectivity.
type HealthWatcher struct {
	health   *health.Server
	store    domain.Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthWatcher creates a new HealthWatcher. The status starts as NOT_SERVING
// until the first successful check.
func NewHealthWatcher(healthServer *health.Server, store domain.Pinger, interval time.Duration, logger *zap.Logger) *HealthWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	return &HealthWatcher{
		health:   healthServer,
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run checks the store every interval until ctx is cancelled, then marks
// every service NOT_SERVING.
func (w *HealthWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Check(ctx)

		select {
		case <-ctx.Done():
			w.health.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

// Check pings the store once and updates the status. It returns the new status.
func (w *HealthWatcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	err := w.store.Ping(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	// log transitions only
	if status != w.last {
		if err != nil {
			w.logger.Warn("store unreachable, reporting NOT_SERVING", zap.Error(err))
		} else {
			w.logger.Info("store reachable, reporting SERVING")
		}
		w.last = status
	}

	w.health.SetServingStatus("", status)
	w.health.SetServingStatus(ServiceName, status)
	return status
}
