// Package agent holds the per-agent state record and the cooperative
// iteration loop that drives it.
//
// State is a thread-safe record of one agent's identity, conversation log,
// lifecycle flags, and sandbox handle. The Loop ticks the state forward:
// drain mailbox, check waiting and termination rules, call the model,
// dispatch tool invocations, repeat. One Loop runs per live agent, each on
// its own goroutine; loops never touch another agent's state except
// through the graph mailbox.
package agent
