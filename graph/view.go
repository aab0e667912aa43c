package graph

import (
	"fmt"
	"sort"
	"strings"
)

// RenderTree renders the delegation tree rooted at the graph's root as
// indented text, one node per line with its status, marking selfID with an
// arrow so an agent can locate itself. A status tally follows the tree.
func (g *Graph) RenderTree(selfID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	if g.rootID == "" {
		return "(no agents)\n"
	}
	g.renderNodeLocked(&b, g.rootID, 0, selfID)

	tally := make(map[Status]int)
	for _, n := range g.nodes {
		tally[n.Status]++
	}
	statuses := make([]string, 0, len(tally))
	for s := range tally {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	b.WriteString("\n")
	for _, s := range statuses {
		fmt.Fprintf(&b, "%s: %d\n", s, tally[Status(s)])
	}
	return b.String()
}

func (g *Graph) renderNodeLocked(b *strings.Builder, id string, depth int, selfID string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "- %s [%s] (%s)", n.Name, n.Status, n.ID)
	if n.Kind == KindVerification {
		fmt.Fprintf(b, " verifying %s", n.ReportID)
	}
	if id == selfID {
		b.WriteString(" ← this is you")
	}
	b.WriteString("\n")
	for _, child := range g.childrenLocked(id) {
		g.renderNodeLocked(b, child.ID, depth+1, selfID)
	}
}
