// Package telemetry owns the scan tracer: OpenTelemetry spans and
// counters for loop and tool activity, plus the persisted run artifacts.
//
// One tracer exists per process. Flush writes the run directory: the
// final markdown report, one markdown file per verified finding, a CSV
// index, and JSON dumps of the non-verified queues.
package telemetry
