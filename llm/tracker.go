package llm

import "sync"

// Stats is a snapshot of one agent's accumulated usage.
type Stats struct {
	// Usage aggregates token counts and cost across all requests.
	Usage Usage

	// Requests is the number of completion calls attempted.
	Requests int

	// FailedRequests is the number of calls that returned a RequestError.
	FailedRequests int

	// LastRequest is the usage of the most recent successful call.
	LastRequest Usage
}

// UsageTracker tracks per-agent LLM usage.
type UsageTracker interface {
	// Record adds a successful request's usage for an agent.
	Record(agentID string, usage Usage)

	// RecordFailure counts a failed request for an agent.
	RecordFailure(agentID string)

	// ByAgent returns the stats snapshot for one agent.
	ByAgent(agentID string) Stats

	// Total returns the aggregate usage across all agents.
	Total() Usage

	// Agents returns the ids of all tracked agents.
	Agents() []string

	// Reset clears all tracked usage.
	Reset()
}

// DefaultUsageTracker is a thread-safe implementation of UsageTracker.
type DefaultUsageTracker struct {
	mu     sync.RWMutex
	agents map[string]Stats
	total  Usage
}

// NewUsageTracker creates a new DefaultUsageTracker.
func NewUsageTracker() *DefaultUsageTracker {
	return &DefaultUsageTracker{
		agents: make(map[string]Stats),
	}
}

// Record adds a successful request's usage for an agent.
func (t *DefaultUsageTracker) Record(agentID string, usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.agents[agentID]
	s.Usage = s.Usage.Add(usage)
	s.Requests++
	s.LastRequest = usage
	t.agents[agentID] = s

	t.total = t.total.Add(usage)
}

// RecordFailure counts a failed request for an agent.
func (t *DefaultUsageTracker) RecordFailure(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.agents[agentID]
	s.Requests++
	s.FailedRequests++
	t.agents[agentID] = s
}

// ByAgent returns the stats snapshot for one agent.
// Returns zero stats for unknown agents.
func (t *DefaultUsageTracker) ByAgent(agentID string) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.agents[agentID]
}

// Total returns the aggregate usage across all agents.
func (t *DefaultUsageTracker) Total() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Agents returns the ids of all tracked agents.
func (t *DefaultUsageTracker) Agents() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.agents))
	for id := range t.agents {
		ids = append(ids, id)
	}
	return ids
}

// Reset clears all tracked usage.
func (t *DefaultUsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agents = make(map[string]Stats)
	t.total = Usage{}
}
