// Package graph provides the process-wide agent graph and mailbox.
//
// The graph is a directed multigraph: nodes are agents, edges carry a type
// (delegation, message, spawned_verification). Exactly one node is the
// root. The mailbox maps each agent id to an ordered queue of envelopes
// consumed at the start of the recipient's next iteration.
//
// Both structures live behind a single mutex; writes serialize, readers
// take short critical sections or snapshots. No code path in this package
// acquires any other lock while holding the graph mutex.
package graph
