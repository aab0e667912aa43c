// Package tool provides the tool registry consumed by agent loops.
//
// A Spec binds a tool name to an implementation and the dispatch metadata
// the dispatcher needs: whether the tool runs inside the sandbox, whether it
// may execute in the parallel wave, whether it receives the calling agent's
// state, and whether it is a terminal (finish) tool.
//
// Implementations come in two signatures, selected by a tagged variant
// rather than a type hierarchy:
//
//	tool.Func      - func(ctx, args) (map[string]any, error)
//	tool.StateFunc - func(ctx, state, args) (map[string]any, error)
//
// Sandbox-proxied tools register without a local implementation; the
// dispatcher routes them to the sandbox tool-server over HTTPS.
//
// The registry is static after startup: register everything during boot,
// then treat it as read-only. It also exposes a documentation view used by
// prompt assembly.
package tool
