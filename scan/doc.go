// Package scan is the controller that runs one security assessment: it
// boots the tracer, builds the shared runtime (graph, finding store,
// dispatcher, LLM client), registers the agent tools, starts the root
// agent, and shepherds the run to completion.
//
// The controller's exit code contract: 0 for a clean run with no
// verified findings, 2 when verified findings exist, 1 on fatal errors.
package scan
