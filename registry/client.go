package registry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Client implements Registry against an etcd cluster.
//
// Lease renewal runs in the background at TTL/3 per registered
// workspace. All methods are safe for concurrent use.
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	mu         sync.Mutex
	leases     map[string]clientv3.LeaseID // key: workspace ID
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

// NewClient connects to etcd and verifies connectivity.
//
// The returned client must be closed to stop its keepalive goroutines.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "swarm"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := clientTLS(*cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Client{
		client:     cli,
		namespace:  namespace,
		ttl:        ttl,
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}, nil
}

// NewClientFromEnv creates a client from the SWARM_REGISTRY_ENDPOINTS
// environment variable (comma-separated etcd endpoints).
//
// Returns (nil, nil) when the variable is unset: the scan still runs,
// sandbox endpoints just have to come from static configuration.
func NewClientFromEnv() (*Client, error) {
	endpoints := os.Getenv("SWARM_REGISTRY_ENDPOINTS")
	if endpoints == "" {
		return nil, nil
	}

	endpointList := strings.Split(endpoints, ",")
	for i, ep := range endpointList {
		endpointList[i] = strings.TrimSpace(ep)
	}

	return NewClient(Config{
		Endpoints: endpointList,
		Namespace: "swarm",
		TTL:       30,
	})
}

// Register adds a sandbox to the registry under a fresh lease and
// starts renewing that lease every TTL/3.
func (c *Client) Register(ctx context.Context, info SandboxInfo) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("invalid sandbox info: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}

	// Cancel existing keepalive if re-registering
	if cancelFn, exists := c.cancelFns[info.WorkspaceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.WorkspaceID)
	}

	leaseResp, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal sandbox info: %w", err)
	}

	key := c.buildKey(info.ScanID, info.WorkspaceID)
	if _, err := c.client.Put(ctx, key, string(data), clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("failed to register sandbox: %w", err)
	}

	c.leases[info.WorkspaceID] = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFns[info.WorkspaceID] = cancel

	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, leaseResp.ID, info.WorkspaceID)

	return nil
}

// Deregister revokes the sandbox's lease, deleting its entry. Unknown
// workspaces are a no-op.
func (c *Client) Deregister(ctx context.Context, info SandboxInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}

	if cancelFn, exists := c.cancelFns[info.WorkspaceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.WorkspaceID)
	}

	leaseID, exists := c.leases[info.WorkspaceID]
	if !exists {
		return nil
	}

	if _, err := c.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}

	delete(c.leases, info.WorkspaceID)

	return nil
}

// Discover returns all live sandboxes for a scan.
func (c *Client) Discover(ctx context.Context, scanID string) ([]SandboxInfo, error) {
	if c.isClosed() {
		return nil, fmt.Errorf("registry client is closed")
	}

	prefix := fmt.Sprintf("/%s/sandbox/%s/", c.namespace, scanID)

	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover sandboxes: %w", err)
	}

	instances := make([]SandboxInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info SandboxInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			// Skip invalid entries
			continue
		}
		instances = append(instances, info)
	}

	return instances, nil
}

// Lookup returns the sandbox registered for one workspace.
func (c *Client) Lookup(ctx context.Context, scanID, workspaceID string) (SandboxInfo, bool, error) {
	if c.isClosed() {
		return SandboxInfo{}, false, fmt.Errorf("registry client is closed")
	}

	resp, err := c.client.Get(ctx, c.buildKey(scanID, workspaceID))
	if err != nil {
		return SandboxInfo{}, false, fmt.Errorf("failed to look up sandbox %s: %w", workspaceID, err)
	}
	if len(resp.Kvs) == 0 {
		return SandboxInfo{}, false, nil
	}

	var info SandboxInfo
	if err := json.Unmarshal(resp.Kvs[0].Value, &info); err != nil {
		return SandboxInfo{}, false, fmt.Errorf("failed to unmarshal sandbox %s: %w", workspaceID, err)
	}
	return info, true, nil
}

// Watch emits the live sandbox set for a scan whenever it changes.
func (c *Client) Watch(ctx context.Context, scanID string) (<-chan []SandboxInfo, error) {
	if c.isClosed() {
		return nil, fmt.Errorf("registry client is closed")
	}

	ch := make(chan []SandboxInfo, 1)

	// Send initial state
	instances, err := c.Discover(ctx, scanID)
	if err != nil {
		return nil, err
	}
	ch <- instances

	prefix := fmt.Sprintf("/%s/sandbox/%s/", c.namespace, scanID)
	watchChan := c.client.Watch(ctx, prefix, clientv3.WithPrefix())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closedChan:
				return
			case watchResp, ok := <-watchChan:
				if !ok {
					return
				}
				if watchResp.Err() != nil {
					return
				}

				// Fetch current state after any change
				instances, err := c.Discover(context.Background(), scanID)
				if err != nil {
					continue
				}

				select {
				case ch <- instances:
				case <-ctx.Done():
					return
				case <-c.closedChan:
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close releases resources and stops background goroutines. After
// Close all other methods return errors.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for _, cancel := range c.cancelFns {
		cancel()
	}
	c.cancelFns = make(map[string]context.CancelFunc)

	close(c.closedChan)
	c.mu.Unlock()

	c.wg.Wait()

	return c.client.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// keepalive renews the lease every TTL/3 to keep the sandbox visible.
// It stops when the context is cancelled or the lease becomes invalid.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID, workspaceID string) {
	defer c.wg.Done()

	interval := time.Duration(c.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedChan:
			return
		case <-ticker.C:
			if _, err := c.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				// Lease is invalid, stop keepalive
				c.mu.Lock()
				delete(c.leases, workspaceID)
				delete(c.cancelFns, workspaceID)
				c.mu.Unlock()
				return
			}
		}
	}
}

// buildKey constructs the etcd key for a sandbox entry.
//
// Format: /namespace/sandbox/scan-id/workspace-id
func (c *Client) buildKey(scanID, workspaceID string) string {
	return fmt.Sprintf("/%s/sandbox/%s/%s", c.namespace, scanID, workspaceID)
}

// clientTLS builds the mutual-TLS configuration for the etcd
// connection. All three certificate paths are required once TLS is
// enabled; a partial configuration is an error rather than a silent
// fallback to plaintext.
func clientTLS(cfg TLSConfig) (*tls.Config, error) {
	switch {
	case cfg.CertFile == "":
		return nil, fmt.Errorf("registry TLS requires a cert file")
	case cfg.KeyFile == "":
		return nil, fmt.Errorf("registry TLS requires a key file")
	case cfg.CAFile == "":
		return nil, fmt.Errorf("registry TLS requires a CA file")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caPEM, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("CA file %s holds no PEM certificates", cfg.CAFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
