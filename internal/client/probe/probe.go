// Package probe asks a running auth server whether it is serving, using the
// standard gRPC health protocol. It backs the healthcheck command used by
// container orchestrators.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

var (
	ErrNotServing     = errors.New("server is not serving")
	ErrUnknownService = errors.New("unknown health service")
)

type GRPCProbe struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      healthpb.HealthClient
}

func NewGRPCProbe(endpointURL string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCProbe, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCProbe{
		endpointURL: endpointURL,
		timeout:     timeout,
		conn:        conn,
		client:      healthpb.NewHealthClient(conn),
	}, nil
}

// Check returns nil only when service reports SERVING.
func (p *GRPCProbe) Check(ctx context.Context, service string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %q", ErrUnknownService, service)
		}
		return fmt.Errorf("health check %s: %w", p.endpointURL, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, resp.GetStatus())
	}
	return nil
}

func (p *GRPCProbe) Close() error {
	return p.conn.Close()
}
