package speechrpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CheckHealth queries the standard gRPC health service at endpoint for the
// recognizer service.
func CheckHealth(ctx context.Context, endpoint string, timeout time.Duration, extra ...grpc.DialOption) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("speech endpoint is empty")
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, extra...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return fmt.Errorf("dial speech grpc %q: %w", endpoint, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health check %q: %w", endpoint, err)
	}
	if status := resp.GetStatus(); status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("speech service at %q is %s", endpoint, status)
	}
	return nil
}
