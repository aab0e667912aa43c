package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Graph is the process-wide agent graph and mailbox. All methods are safe
// for concurrent use; a single mutex guards every structure.
type Graph struct {
	mu       sync.Mutex
	nodes    map[string]*Node
	edges    []Edge
	mailbox  map[string][]Envelope
	rootID   string
	now      func() time.Time
	watchers []chan struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		mailbox: make(map[string][]Envelope),
		now:     time.Now,
	}
}

// AddNode inserts a node. The first node with no parent becomes the root;
// every later node must name an existing parent, and a delegation or
// spawned_verification edge from the parent is recorded.
func (g *Graph) AddNode(n Node) error {
	if err := n.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("node %s already exists", n.ID)
	}
	if n.ParentID == "" {
		if g.rootID != "" {
			return fmt.Errorf("graph already has root %s; node %s must name a parent", g.rootID, n.ID)
		}
		g.rootID = n.ID
	} else if _, ok := g.nodes[n.ParentID]; !ok {
		return fmt.Errorf("node %s: parent %s not found", n.ID, n.ParentID)
	}

	if n.Status == "" {
		n.Status = StatusCreated
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = g.now()
	}
	g.nodes[n.ID] = &n

	if n.ParentID != "" {
		edgeType := EdgeDelegation
		if n.Kind == KindVerification {
			edgeType = EdgeSpawnedVerification
		}
		g.edges = append(g.edges, Edge{
			From:      n.ParentID,
			To:        n.ID,
			Type:      edgeType,
			CreatedAt: n.CreatedAt,
		})
	}
	g.notifyLocked()
	return nil
}

// AddEdge records an edge between two existing nodes.
func (g *Graph) AddEdge(from, to string, t EdgeType) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok && from != UserSender {
		return fmt.Errorf("edge source %s not found", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("edge target %s not found", to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Type: t, CreatedAt: g.now()})
	return nil
}

// SetStatus updates a node's lifecycle state. Terminal states are sticky:
// once a node completes, stops, fails, or times out, further transitions
// are rejected.
func (g *Graph) SetStatus(id string, s Status) error {
	if !s.IsValid() {
		return fmt.Errorf("invalid status %q", s)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	if n.Status.IsTerminal() && n.Status != s {
		return fmt.Errorf("node %s is %s; cannot transition to %s", id, n.Status, s)
	}
	n.Status = s
	g.notifyLocked()
	return nil
}

// Status returns a node's current lifecycle state.
func (g *Graph) Status(id string) (Status, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return "", false
	}
	return n.Status, true
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Root returns the root node id, or empty if no node was added yet.
func (g *Graph) Root() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rootID
}

// Nodes returns copies of all nodes, ordered by creation time.
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Children returns copies of a node's direct children, ordered by creation
// time.
func (g *Graph) Children(id string) []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.childrenLocked(id)
}

func (g *Graph) childrenLocked(id string) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.ParentID == id {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Edges returns a copy of the edge list in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// ResolveName finds the agent id for a display name. Names are not
// guaranteed unique; the earliest-created match wins.
func (g *Graph) ResolveName(name string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var best *Node
	for _, n := range g.nodes {
		if n.Name != name {
			continue
		}
		if best == nil || n.CreatedAt.Before(best.CreatedAt) {
			best = n
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}

// Deliver appends an envelope to the recipient's mailbox and records a
// message edge. The envelope's timestamp and delivered flag are set here;
// delivery order is arrival order.
func (g *Graph) Deliver(e Envelope) error {
	if err := e.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("recipient %s not found", e.To)
	}
	if e.From != UserSender {
		if _, ok := g.nodes[e.From]; !ok {
			return fmt.Errorf("sender %s not found", e.From)
		}
	}

	e.Timestamp = g.now()
	e.Delivered = true
	e.Read = false
	g.mailbox[e.To] = append(g.mailbox[e.To], e)
	g.edges = append(g.edges, Edge{
		From:      e.From,
		To:        e.To,
		Type:      EdgeMessage,
		CreatedAt: e.Timestamp,
	})
	g.notifyLocked()
	return nil
}

// TakeUnread removes and returns the recipient's unread envelopes in
// delivery order, marking them read.
func (g *Graph) TakeUnread(id string) []Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()

	box := g.mailbox[id]
	var out []Envelope
	for i := range box {
		if !box[i].Read {
			box[i].Read = true
			out = append(out, box[i])
		}
	}
	return out
}

// HasUnread reports whether the recipient has unread envelopes.
func (g *Graph) HasUnread(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.mailbox[id] {
		if !e.Read {
			return true
		}
	}
	return false
}

// Mailbox returns a copy of the recipient's full mailbox, read and unread.
func (g *Graph) Mailbox(id string) []Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Envelope, len(g.mailbox[id]))
	copy(out, g.mailbox[id])
	return out
}

// StatusTally counts nodes per status.
func (g *Graph) StatusTally() map[Status]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[Status]int)
	for _, n := range g.nodes {
		out[n.Status]++
	}
	return out
}

// ActiveAgents returns ids of nodes that are running or stopping. The
// root finish gate uses this to enumerate blockers.
func (g *Graph) ActiveAgents(excludeID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, n := range g.nodes {
		if n.ID == excludeID {
			continue
		}
		if n.Status.IsActive() || n.Status == StatusCreated {
			out = append(out, n.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Watch returns a channel that receives a notification after each graph
// mutation. The channel has capacity one and coalesces bursts.
func (g *Graph) Watch() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{}, 1)
	g.watchers = append(g.watchers, ch)
	return ch
}

func (g *Graph) notifyLocked() {
	for _, ch := range g.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
