package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/scan"
)

// Scanner runs one security assessment end to end.
type Scanner struct {
	cfg scan.Config
	ctl *scan.Controller
	log *slog.Logger
}

// NewScanner builds a scanner from options. Configuration precedence:
// environment variables, then the config file when one is given, then
// explicit options.
//
// Example:
//
//	scanner, err := swarm.NewScanner(
//	    swarm.WithConfigFile("scan.yaml"),
//	    swarm.WithObjective("find authentication bypasses"),
//	)
func NewScanner(opts ...Option) (*Scanner, error) {
	sc := &scannerConfig{}
	for _, opt := range opts {
		opt(sc)
	}

	logger := sc.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	var cfg scan.Config
	if sc.configPath != "" {
		loaded, err := scan.LoadConfig(sc.configPath)
		if err != nil {
			return nil, NewConfigurationError("NewScanner", err)
		}
		cfg = loaded
	} else {
		cfg.ApplyEnv()
	}
	for _, m := range sc.mutators {
		m(&cfg)
	}

	ctlOpts := []scan.ControllerOption{scan.WithLogger(logger)}
	if sc.client != nil {
		ctlOpts = append(ctlOpts, scan.WithClient(sc.client))
	}
	ctl, err := scan.New(cfg, ctlOpts...)
	if err != nil {
		return nil, &ScanError{
			Op:   "NewScanner",
			Kind: KindValidation,
			Err:  fmt.Errorf("%w: %v", ErrInvalidConfig, err),
		}
	}

	return &Scanner{cfg: cfg, ctl: ctl, log: logger}, nil
}

// Run executes the scan and blocks until the root agent finishes or ctx
// is cancelled. Cancellation is a clean stop, not an error.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.ctl.Run(ctx); err != nil {
		return &ScanError{Op: "Scanner.Run", Kind: KindExecution, Err: err}
	}
	return nil
}

// ExitCode maps the run outcome to the process exit code: 0 for a clean
// run, 2 when verified findings exist, 1 on fatal errors.
func (s *Scanner) ExitCode() int {
	return s.ctl.ExitCode()
}

// FinalReport returns the markdown report the root agent finished with,
// empty when the scan ended without one.
func (s *Scanner) FinalReport() string {
	return s.ctl.FinalReport()
}

// VerifiedFindings returns the findings that survived independent
// verification.
func (s *Scanner) VerifiedFindings() []finding.Report {
	return s.ctl.Store().Verified()
}

// Run is a convenience wrapper: build a scanner, run it, and return its
// exit code.
func Run(ctx context.Context, opts ...Option) (int, error) {
	scanner, err := NewScanner(opts...)
	if err != nil {
		return scan.ExitFatal, err
	}
	if err := scanner.Run(ctx); err != nil {
		return scanner.ExitCode(), err
	}
	return scanner.ExitCode(), nil
}
