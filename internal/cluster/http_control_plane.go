package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/HeleneHuang/ai-agent-failure-prediction/internal/model"
)

// HTTPControlPlane implements ControlPlane against the storage cluster's
// admin API. Membership mutations go over HTTP JSON; per-member health is
// probed with the standard gRPC health checking protocol on the member's
// own address.
type HTTPControlPlane struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	probeTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn // keyed by member address
}

// NewHTTPControlPlane creates a new control plane client
func NewHTTPControlPlane(baseURL string, requestTimeout, probeTimeout time.Duration, logger *zap.Logger) *HTTPControlPlane {
	return &HTTPControlPlane{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		probeTimeout: probeTimeout,
		conns:        make(map[string]*grpc.ClientConn),
		logger:       logger,
	}
}

// AddMember joins a new node via the admin API
func (c *HTTPControlPlane) AddMember(ctx context.Context, spec model.NodeSpec) (*model.Member, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal spec: %v", ErrProvision, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/members", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvision, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvision, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: add-member returned %s: %s", ErrProvision, resp.Status, readErrorBody(resp.Body))
	}

	var member model.Member
	if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvision, err)
	}

	c.logger.Info("Member added to cluster",
		zap.String("node_id", member.NodeID),
		zap.String("address", member.Address))

	return &member, nil
}

// RemoveMember removes a node via the admin API
func (c *HTTPControlPlane) RemoveMember(ctx context.Context, nodeID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/members/"+nodeID, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoval, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: remove-member returned %s: %s", ErrRemoval, resp.Status, readErrorBody(resp.Body))
	}

	c.logger.Info("Member removed from cluster", zap.String("node_id", nodeID))
	return nil
}

// Members lists current cluster membership via the admin API
func (c *HTTPControlPlane) Members(ctx context.Context) ([]*model.Member, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/members", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list members returned %s", resp.Status)
	}

	var members []*model.Member
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}

	return members, nil
}

// HealthOf probes the member over the gRPC health protocol
func (c *HTTPControlPlane) HealthOf(ctx context.Context, nodeID string) model.MemberHealth {
	member, err := c.findMember(ctx, nodeID)
	if err != nil {
		c.logger.Warn("Health probe could not resolve member",
			zap.String("node_id", nodeID),
			zap.Error(err))
		return model.MemberUnknown
	}

	conn, err := c.connTo(member.Address)
	if err != nil {
		c.logger.Warn("Health probe could not connect",
			zap.String("node_id", nodeID),
			zap.String("address", member.Address),
			zap.Error(err))
		return model.MemberUnknown
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(probeCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return model.MemberUnknown
	}

	if resp.Status == healthpb.HealthCheckResponse_SERVING {
		return model.MemberHealthy
	}
	return model.MemberUnhealthy
}

// findMember resolves a node ID to its registered address
func (c *HTTPControlPlane) findMember(ctx context.Context, nodeID string) (*model.Member, error) {
	members, err := c.Members(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.NodeID == nodeID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("member %s not registered", nodeID)
}

// connTo returns a cached gRPC connection to the given address
func (c *HTTPControlPlane) connTo(address string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[address]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	c.conns[address] = conn
	return conn, nil
}

// Close closes all cached member connections
func (c *HTTPControlPlane) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil {
			c.logger.Warn("Failed to close member connection",
				zap.String("address", addr),
				zap.Error(err))
		}
	}
	c.conns = make(map[string]*grpc.ClientConn)
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(b))
}
