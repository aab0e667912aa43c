package swarm

import (
	"log/slog"

	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/scan"
)

// Option configures a Scanner.
type Option func(*scannerConfig)

// scannerConfig accumulates the configuration sources for a Scanner:
// an optional config file, field overrides applied on top, and direct
// collaborator injections.
type scannerConfig struct {
	configPath string
	mutators   []func(*scan.Config)
	logger     *slog.Logger
	client     llm.Client
}

func (c *scannerConfig) mutate(fn func(*scan.Config)) {
	c.mutators = append(c.mutators, fn)
}

// WithConfigFile loads the scan configuration from a YAML file. Other
// options applied after it override individual fields.
func WithConfigFile(path string) Option {
	return func(c *scannerConfig) {
		c.configPath = path
	}
}

// WithScanID sets the scan identifier. Generated when unset.
func WithScanID(id string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.ScanID = id })
	}
}

// WithTarget sets the engagement scope handed to every agent.
func WithTarget(target string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.Target = target })
	}
}

// WithObjective sets the root agent's task. Required.
func WithObjective(objective string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.Objective = objective })
	}
}

// WithRootAgentName names the root agent. Default: "coordinator".
func WithRootAgentName(name string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.RootAgentName = name })
	}
}

// WithPromptModules selects the root agent's prompt modules.
func WithPromptModules(modules ...string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.PromptModules = modules })
	}
}

// WithInteractive keeps finished agents parked in waiting for operator
// follow-up instead of exiting.
func WithInteractive(v bool) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.Interactive = v })
	}
}

// WithRunDir sets where run artifacts are written. Empty disables
// persistence.
func WithRunDir(dir string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.RunDir = dir })
	}
}

// WithMaxIterations bounds the root agent's loop.
func WithMaxIterations(n int) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.MaxIterations = n })
	}
}

// WithLLM sets the completion model configuration.
func WithLLM(cfg llm.Config) Option {
	return func(c *scannerConfig) {
		c.mutate(func(sc *scan.Config) { sc.LLM = cfg })
	}
}

// WithEventsURL sets the Redis URL for the scan event stream.
func WithEventsURL(url string) Option {
	return func(c *scannerConfig) {
		c.mutate(func(cfg *scan.Config) { cfg.EventsURL = url })
	}
}

// WithLLMClient injects a completion client directly, bypassing HTTP
// client construction. Intended for tests and custom transports.
func WithLLMClient(client llm.Client) Option {
	return func(c *scannerConfig) {
		c.client = client
	}
}

// WithLogger sets a custom logger. If not provided, a text handler to
// stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = logger
	}
}
