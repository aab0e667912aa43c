// Package dispatch routes the tool invocations of one LLM turn.
//
// Invocations are classified into three waves: parallelizable tools run
// concurrently, everything else runs serially in list order, and terminal
// tools (finish_scan, agent_finish) always run last. Results are reported
// back in the original invocation order regardless of execution order, as
// one observation message of <tool_result> blocks.
//
// Tools flagged runs_in_sandbox go over HTTPS to the agent's workspace
// tool server; the rest call local implementations from the registry.
package dispatch
