package chain

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCConn manages a gRPC connection to a chain node. It does not implement
// Gateway itself; node-specific gateways are built from generated clients over
// Conn(). The standard health service is used for reachability checks.
type GRPCConn struct {
	name     string
	endpoint string
	conn     *grpc.ClientConn
}

// NewGRPCConn dials a gRPC chain endpoint.
func NewGRPCConn(ctx context.Context, name, endpoint string) (*GRPCConn, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial grpc endpoint %s: %w", target, err)
	}

	return &GRPCConn{
		name:     name,
		endpoint: endpoint,
		conn:     conn,
	}, nil
}

// Conn returns the underlying gRPC connection for generated clients.
func (g *GRPCConn) Conn() *grpc.ClientConn {
	return g.conn
}

// Name returns the configured connection name.
func (g *GRPCConn) Name() string {
	return g.name
}

// Healthy probes the node's standard health service.
func (g *GRPCConn) Healthy(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := healthpb.NewHealthClient(g.conn)
	resp, err := client.Check(checkCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed for %s: %w", g.name, err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("node %s not serving: %s", g.name, resp.Status)
	}
	return nil
}

// Close cleans up resources.
func (g *GRPCConn) Close() error {
	return g.conn.Close()
}
