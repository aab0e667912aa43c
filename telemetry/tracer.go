package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/llm"
)

const instrumentationName = "github.com/zero-day-ai/swarm"

// TracerConfig configures a scan tracer.
type TracerConfig struct {
	// RunDir is where Flush writes the run artifacts. Empty disables
	// persistence.
	RunDir string

	// ScanID labels spans and artifacts.
	ScanID string

	// Store supplies the finding queues at flush time.
	Store *finding.Store

	// Tracker supplies usage totals for the report footer. Optional.
	Tracker llm.UsageTracker

	// Exporter receives finished spans. Optional; spans stay in-process
	// without one.
	Exporter sdktrace.SpanExporter

	// Logger receives tracer events.
	Logger *slog.Logger
}

// Tracer is the process-wide scan tracer.
type Tracer struct {
	cfg      TracerConfig
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	log      *slog.Logger

	iterations  metric.Int64Counter
	toolCalls   metric.Int64Counter
	llmRequests metric.Int64Counter

	mu          sync.Mutex
	finalReport string
}

var (
	singletonMu sync.Mutex
	singleton   *Tracer
)

// Install makes a tracer the process singleton.
func Install(t *Tracer) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = t
}

// Current returns the installed tracer, nil when none is installed.
func Current() *Tracer {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	return singleton
}

// NewTracer builds a tracer and its OpenTelemetry providers.
func NewTracer(cfg TracerConfig) (*Tracer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("tracer requires a finding store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("swarm"),
			attribute.String("scan.id", cfg.ScanID),
		),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	providerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(cfg.Exporter))
	}
	tp := sdktrace.NewTracerProvider(providerOpts...)

	meter := otel.Meter(instrumentationName)
	iterations, err := meter.Int64Counter("swarm.agent.iterations",
		metric.WithDescription("Agent loop iterations executed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create iteration counter: %w", err)
	}
	toolCalls, err := meter.Int64Counter("swarm.tool.calls",
		metric.WithDescription("Tool invocations dispatched"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tool counter: %w", err)
	}
	llmRequests, err := meter.Int64Counter("swarm.llm.requests",
		metric.WithDescription("LLM completion requests issued"))
	if err != nil {
		return nil, fmt.Errorf("failed to create llm counter: %w", err)
	}

	return &Tracer{
		cfg:         cfg,
		provider:    tp,
		tracer:      tp.Tracer(instrumentationName),
		log:         logger,
		iterations:  iterations,
		toolCalls:   toolCalls,
		llmRequests: llmRequests,
	}, nil
}

// StartIteration opens a span for one agent loop iteration.
func (t *Tracer) StartIteration(ctx context.Context, agentID string, iteration int) (context.Context, trace.Span) {
	t.iterations.Add(ctx, 1, metric.WithAttributes(attribute.String("agent.id", agentID)))
	return t.tracer.Start(ctx, "agent.iteration",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.Int("agent.iteration", iteration),
		))
}

// RecordToolCall counts one dispatched invocation.
func (t *Tracer) RecordToolCall(ctx context.Context, agentID, toolName string, isError bool) {
	t.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent.id", agentID),
		attribute.String("tool.name", toolName),
		attribute.Bool("tool.error", isError),
	))
}

// RecordLLMRequest counts one completion request.
func (t *Tracer) RecordLLMRequest(ctx context.Context, agentID string, failed bool) {
	t.llmRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent.id", agentID),
		attribute.Bool("request.failed", failed),
	))
}

// SetFinalReport records the root agent's final report content for
// persistence at flush.
func (t *Tracer) SetFinalReport(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalReport = content
}

// FinalReport returns the recorded final report content.
func (t *Tracer) FinalReport() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalReport
}

// Flush persists the run artifacts and shuts the span provider down.
func (t *Tracer) Flush(ctx context.Context) error {
	if t.cfg.RunDir != "" {
		if err := t.writeArtifacts(); err != nil {
			t.log.Error("failed to write run artifacts", "error", err)
			return err
		}
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		t.log.Warn("tracer provider shutdown failed", "error", err)
	}
	return nil
}
