// Package grpc holds gRPC client helpers for probing running services.
package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Dial opens a lazily connecting client for addr. Calls carry trace context
// when a TracerProvider is registered.
func Dial(addr string) (*gogrpc.ClientConn, error) {
	return gogrpc.NewClient(addr,
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}

// WaitForHealth blocks until every named service reports SERVING or the
// context ends. No names checks the server as a whole. An unregistered
// service fails immediately.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, services []string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(services) == 0 {
		services = []string{""}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	for _, service := range services {
		check := func() (struct{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
			if status.Code(err) == codes.NotFound {
				return struct{}{}, backoff.Permanent(fmt.Errorf("health service %q is not registered", service))
			}
			if err != nil {
				return struct{}{}, err
			}
			if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				return struct{}{}, fmt.Errorf("health service %q status %s", service, resp.GetStatus())
			}
			return struct{}{}, nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 200 * time.Millisecond
		bo.MaxInterval = time.Second
		_, err := backoff.Retry(ctx, check,
			backoff.WithBackOff(bo),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				if logf != nil {
					logf("waiting for gRPC health: %v (retry in %s)", err, next)
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("wait for gRPC health: %w", err)
		}
	}
	if logf != nil {
		logf("gRPC health check is SERVING")
	}
	return nil
}
