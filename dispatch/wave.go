package dispatch

import (
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/tool"
)

// item is one invocation with its original position and resolved spec.
// Spec is nil for unknown tool names; those become error results without
// executing.
type item struct {
	index      int
	invocation llm.ToolInvocation
	spec       *tool.Spec
}

// waves groups a turn's invocations by execution strategy.
type waves struct {
	parallel   []item
	sequential []item
	finish     []item
}

// classify splits invocations left to right: parallelizable non-terminal
// tools, then everything else non-terminal, then terminal tools in the
// order given. Unknown names land in the sequential wave so their error
// results keep their position.
func classify(registry *tool.Registry, invocations []llm.ToolInvocation) waves {
	var w waves
	for i, inv := range invocations {
		it := item{index: i, invocation: inv}
		spec, ok := registry.Lookup(inv.Name)
		if !ok {
			w.sequential = append(w.sequential, it)
			continue
		}
		it.spec = spec
		switch {
		case spec.Terminal:
			w.finish = append(w.finish, it)
		case spec.Parallelizable:
			w.parallel = append(w.parallel, it)
		default:
			w.sequential = append(w.sequential, it)
		}
	}
	return w
}
