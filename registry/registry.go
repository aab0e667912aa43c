// Package registry provides sandbox endpoint discovery backed by etcd.
//
// Every sandbox that hosts agent tooling registers itself here so the
// scan runtime can find the execution endpoint for a workspace without
// static configuration. Entries are held on etcd leases with TTL, so a
// sandbox that crashes or loses connectivity drops out of discovery on
// its own.
//
// Keys are laid out as /{namespace}/sandbox/{scan-id}/{workspace-id}.
package registry

import (
	"context"
	"fmt"
	"time"
)

// SandboxInfo describes a registered sandbox instance.
type SandboxInfo struct {
	// ScanID is the scan this sandbox belongs to.
	ScanID string `json:"scan_id"`

	// WorkspaceID uniquely identifies the sandbox workspace.
	WorkspaceID string `json:"workspace_id"`

	// AgentID is the agent the sandbox was provisioned for.
	AgentID string `json:"agent_id"`

	// Endpoint is the base URL of the sandbox tool server
	// (e.g., "http://10.0.3.7:8080").
	Endpoint string `json:"endpoint"`

	// Metadata carries sandbox-specific attributes such as the image
	// name or the exposed tool set.
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt is when this sandbox came up.
	StartedAt time.Time `json:"started_at"`
}

// Validate checks that the info carries the fields discovery depends on.
func (i SandboxInfo) Validate() error {
	if i.ScanID == "" {
		return fmt.Errorf("sandbox scan ID is required")
	}
	if i.WorkspaceID == "" {
		return fmt.Errorf("sandbox workspace ID is required")
	}
	if i.Endpoint == "" {
		return fmt.Errorf("sandbox endpoint is required")
	}
	return nil
}

// Registry defines sandbox registration and discovery.
//
// Implementations must be safe for concurrent use. Registration is
// lease-backed: an entry stays visible only while its owner keeps the
// lease alive, so discovery never returns a sandbox that has been gone
// longer than the TTL.
type Registry interface {
	// Register adds a sandbox to the registry and starts renewing its
	// lease in the background. Re-registering the same workspace
	// replaces the existing entry.
	Register(ctx context.Context, info SandboxInfo) error

	// Deregister removes a sandbox immediately. Unknown workspaces are
	// a no-op.
	Deregister(ctx context.Context, info SandboxInfo) error

	// Discover returns all live sandboxes for a scan.
	Discover(ctx context.Context, scanID string) ([]SandboxInfo, error)

	// Lookup returns the sandbox for one workspace, false when none is
	// registered.
	Lookup(ctx context.Context, scanID, workspaceID string) (SandboxInfo, bool, error)

	// Watch emits the live sandbox set for a scan whenever it changes.
	// The current state is sent immediately; the channel closes when
	// the context is cancelled or the registry shuts down.
	Watch(ctx context.Context, scanID string) (<-chan []SandboxInfo, error)

	// Close releases resources and stops all background goroutines.
	Close() error
}

// Config holds registry connection configuration.
type Config struct {
	// Endpoints is the list of etcd endpoints, e.g. ["host1:2379"].
	Endpoints []string `json:"endpoints"`

	// Namespace is the etcd key prefix for all sandbox entries.
	// Default: "swarm".
	Namespace string `json:"namespace"`

	// TTL is the lease time-to-live in seconds. A sandbox that fails
	// to renew within this window disappears from discovery.
	// Default: 30.
	TTL int `json:"ttl"`

	// TLS holds TLS configuration for secure etcd communication.
	// Nil disables TLS.
	TLS *TLSConfig `json:"tls"`
}

// TLSConfig holds certificate paths for mutual TLS with etcd.
type TLSConfig struct {
	// Enabled determines whether TLS is active.
	Enabled bool `json:"enabled"`

	// CertFile is the path to the client certificate (PEM).
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the client private key (PEM).
	KeyFile string `json:"key_file"`

	// CAFile is the path to the certificate authority bundle (PEM).
	CAFile string `json:"ca_file"`
}
