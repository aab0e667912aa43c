package scan

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/registry"
)

// DefaultCleanupTimeout bounds the join of remaining agent workers at
// shutdown.
const DefaultCleanupTimeout = 5 * time.Second

// SandboxConfig locates the sandbox tool-server agents execute
// commands against.
type SandboxConfig struct {
	// Enabled routes sandbox-flagged tools through the tool-server.
	Enabled bool `yaml:"enabled"`

	// InSandbox marks the process as already running inside the
	// sandbox, so sandbox-flagged tools would execute locally.
	InSandbox bool `yaml:"in_sandbox"`

	// WorkspaceID, APIURL, AuthToken and ToolServerPort describe a
	// statically configured workspace. When APIURL is empty and a
	// registry is configured, the workspace is discovered instead.
	WorkspaceID    string `yaml:"workspace_id"`
	APIURL         string `yaml:"api_url"`
	AuthToken      string `yaml:"auth_token"`
	ToolServerPort int    `yaml:"tool_server_port"`
}

// Config is the full scan configuration, loadable from YAML with
// environment overrides.
type Config struct {
	// ScanID labels the run. Generated when empty.
	ScanID string `yaml:"scan_id"`

	// Target is the engagement scope handed to every agent.
	Target string `yaml:"target"`

	// Objective is the root agent's task.
	Objective string `yaml:"objective"`

	// RootAgentName names the root agent. Default: "coordinator".
	RootAgentName string `yaml:"root_agent_name"`

	// PromptModules select the root agent's prompt modules (max 5,
	// validated against the closed module registry).
	PromptModules []string `yaml:"prompt_modules"`

	// Interactive keeps finished agents parked in waiting for operator
	// follow-up instead of exiting.
	Interactive bool `yaml:"interactive"`

	// RunDir is where run artifacts land. Empty disables persistence.
	RunDir string `yaml:"run_dir"`

	// MaxIterations bounds the root agent's loop.
	// Default: agent.DefaultMaxIterations.
	MaxIterations int `yaml:"max_iterations"`

	// MaxToolConcurrency caps the dispatcher's parallel wave.
	// Zero means unbounded.
	MaxToolConcurrency int `yaml:"max_tool_concurrency"`

	// CleanupTimeoutSeconds bounds worker joins at shutdown.
	// Default: 5.
	CleanupTimeoutSeconds int `yaml:"cleanup_timeout_seconds"`

	// LLM configures the completion client.
	LLM llm.Config `yaml:"llm"`

	// Sandbox locates the tool-server.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// EventsURL is the Redis URL for the scan event stream. Empty
	// disables event publishing.
	EventsURL string `yaml:"events_url"`

	// ControlPort starts the gRPC control server on this port when
	// non-zero, exposing per-scan health for external supervisors.
	ControlPort int `yaml:"control_port"`

	// Registry configures etcd sandbox discovery. Empty endpoints
	// disable it.
	Registry registry.Config `yaml:"registry"`
}

// LoadConfig reads a YAML config file and applies environment
// overrides and defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyEnv overlays the environment variables the process consumes.
func (c *Config) ApplyEnv() {
	if c.LLM.Model == "" {
		env := llm.ConfigFromEnv()
		if env.Model != "" {
			c.LLM = env
		}
	}
	if v := os.Getenv("SWARM_EVENTS_URL"); v != "" {
		c.EventsURL = v
	}
	if v := os.Getenv("SWARM_SANDBOX_MODE"); v == "1" || v == "true" {
		c.Sandbox.InSandbox = true
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ScanID == "" {
		c.ScanID = "scan-" + uuid.NewString()
	}
	if c.RootAgentName == "" {
		c.RootAgentName = "coordinator"
	}
	if len(c.PromptModules) == 0 {
		c.PromptModules = []string{ModuleRecon, ModuleReporting, ModuleCollaboration}
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = agent.DefaultMaxIterations
	}
	if c.CleanupTimeoutSeconds <= 0 {
		c.CleanupTimeoutSeconds = int(DefaultCleanupTimeout / time.Second)
	}
}

// CleanupTimeout returns the shutdown join bound as a duration.
func (c *Config) CleanupTimeout() time.Duration {
	return time.Duration(c.CleanupTimeoutSeconds) * time.Second
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Objective == "" {
		return fmt.Errorf("scan objective is required")
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("invalid llm config: %w", err)
	}
	if err := ValidateModules(c.PromptModules); err != nil {
		return err
	}
	return nil
}
