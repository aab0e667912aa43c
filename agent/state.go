package agent

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/sandbox"
)

const (
	// DefaultMaxIterations bounds an ordinary agent's loop.
	DefaultMaxIterations = 300

	// VerifierMaxIterations bounds a spawned verifier's loop.
	VerifierMaxIterations = 50

	// ApproachThreshold is the fraction of max iterations at which the
	// soft "approaching limit" warning fires.
	ApproachThreshold = 0.85

	// FinalWarningWindow is how many iterations before the limit the hard
	// warning fires.
	FinalWarningWindow = 3

	// WaitingTimeout is how long an agent may sit in waiting before the
	// loop forces a resume.
	WaitingTimeout = 600 * time.Second
)

// Action records one tool invocation the agent issued.
type Action struct {
	Iteration int            `json:"iteration"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// State is the per-agent record. All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	id        string
	name      string
	parentID  string
	task      string
	createdAt time.Time

	iteration     int
	maxIterations int

	log     []llm.Message
	actions []Action
	errs    []string

	completed     bool
	finalResult   string
	stopRequested bool

	waitingForInput bool
	waitingReason   string
	waitingSince    time.Time
	llmFailed       bool

	softWarned  bool
	finalWarned bool

	workspace     *sandbox.Workspace
	promptContext map[string]any

	lastUpdated time.Time
}

// Option customizes a new State.
type Option func(*State)

// WithParent records the spawning agent's id.
func WithParent(parentID string) Option {
	return func(s *State) { s.parentID = parentID }
}

// WithMaxIterations overrides the iteration bound.
func WithMaxIterations(n int) Option {
	return func(s *State) { s.maxIterations = n }
}

// WithWorkspace attaches a sandbox workspace handle.
func WithWorkspace(ws *sandbox.Workspace) Option {
	return func(s *State) { s.workspace = ws }
}

// WithTask records the task text the agent was created with.
func WithTask(task string) Option {
	return func(s *State) { s.task = task }
}

// New creates an agent state.
func New(id, name string, opts ...Option) (*State, error) {
	if id == "" {
		return nil, fmt.Errorf("agent id cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("agent %s: name cannot be empty", id)
	}
	s := &State{
		id:            id,
		name:          name,
		createdAt:     time.Now(),
		maxIterations: DefaultMaxIterations,
		promptContext: make(map[string]any),
		lastUpdated:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxIterations <= 0 {
		return nil, fmt.Errorf("agent %s: max iterations must be positive, got %d", id, s.maxIterations)
	}
	return s, nil
}

// AgentID returns the agent's opaque id.
func (s *State) AgentID() string { return s.id }

// AgentName returns the agent's display name.
func (s *State) AgentName() string { return s.name }

// ParentID returns the spawning agent's id, empty for the root.
func (s *State) ParentID() string { return s.parentID }

// Task returns the task text the agent was created with.
func (s *State) Task() string { return s.task }

// CreatedAt returns the creation timestamp.
func (s *State) CreatedAt() time.Time { return s.createdAt }

func (s *State) touchLocked() {
	s.lastUpdated = time.Now()
}

// IncrementIteration bumps the counter and returns the new value.
func (s *State) IncrementIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	s.touchLocked()
	return s.iteration
}

// Iteration returns the current iteration count.
func (s *State) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// MaxIterations returns the iteration bound.
func (s *State) MaxIterations() int {
	return s.maxIterations
}

// AddMessage appends a plain text message to the log. Terminal agents
// reject further mutation.
func (s *State) AddMessage(role llm.Role, content string) {
	s.AddFullMessage(llm.NewTextMessage(role, content))
}

// AddFullMessage appends a message, chunks and all.
func (s *State) AddFullMessage(m llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminalLocked() {
		return
	}
	s.log = append(s.log, m)
	s.touchLocked()
}

// ReplaceLog atomically swaps the message log for a compressed
// equivalent. Callers must preserve order and meaning.
func (s *State) ReplaceLog(msgs []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminalLocked() {
		return
	}
	s.log = msgs
	s.touchLocked()
}

// Messages returns a copy of the conversation log.
func (s *State) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.log))
	copy(out, s.log)
	return out
}

// AddAction records a tool invocation.
func (s *State) AddAction(tool string, args map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, Action{
		Iteration: s.iteration,
		Tool:      tool,
		Args:      args,
		Timestamp: time.Now(),
	})
	s.touchLocked()
}

// Actions returns a copy of the action records.
func (s *State) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// AddError records a runtime error string.
func (s *State) AddError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, msg)
	s.touchLocked()
}

// Errors returns a copy of the recorded errors.
func (s *State) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.errs))
	copy(out, s.errs)
	return out
}

// UpdateContext sets a prompt-context key.
func (s *State) UpdateContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptContext[key] = value
	s.touchLocked()
}

// Context returns a copy of the prompt-context map.
func (s *State) Context() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.promptContext))
	for k, v := range s.promptContext {
		out[k] = v
	}
	return out
}

// SetCompleted marks the agent done with a final result.
func (s *State) SetCompleted(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
	s.finalResult = result
	s.waitingForInput = false
	s.llmFailed = false
	s.touchLocked()
}

// IsCompleted reports whether the agent finished.
func (s *State) IsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// FinalResult returns the result recorded by SetCompleted.
func (s *State) FinalResult() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalResult
}

// RequestStop flags the agent to halt at the next tick boundary.
// Idempotent.
func (s *State) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
	s.touchLocked()
}

// StopRequested reports whether a stop is pending.
func (s *State) StopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

// EnterWaiting pauses the agent until a message arrives or the waiting
// timeout fires. llmFailed restricts resumption to user messages.
func (s *State) EnterWaiting(reason string, llmFailed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminalLocked() {
		return
	}
	s.waitingForInput = true
	s.waitingReason = reason
	s.waitingSince = time.Now()
	s.llmFailed = llmFailed
	s.touchLocked()
}

// ResumeFromWaiting clears the waiting and llm-failed flags. A non-empty
// newTask is recorded as the agent's current task.
func (s *State) ResumeFromWaiting(newTask string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitingForInput = false
	s.waitingReason = ""
	s.waitingSince = time.Time{}
	s.llmFailed = false
	if newTask != "" {
		s.task = newTask
	}
	s.touchLocked()
}

// IsWaiting reports whether the agent is paused for input.
func (s *State) IsWaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingForInput
}

// WaitingReason returns the reason given when the agent paused.
func (s *State) WaitingReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingReason
}

// IsLLMFailed reports whether the agent is stalled on a model failure.
func (s *State) IsLLMFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmFailed
}

// HasWaitingTimeout reports whether the agent has been waiting for at
// least the waiting timeout, regardless of other flags.
func (s *State) HasWaitingTimeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitingSince.IsZero() {
		return false
	}
	return time.Since(s.waitingSince) >= WaitingTimeout
}

// HasReachedMaxIterations reports whether the counter hit the bound.
func (s *State) HasReachedMaxIterations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration >= s.maxIterations
}

// IsApproachingMaxIterations reports whether the counter hit the soft
// warning threshold.
func (s *State) IsApproachingMaxIterations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration >= softWarningIteration(s.maxIterations)
}

// ShouldStop reports whether the loop must not start another iteration:
// a stop is pending, the agent completed, or the bound is reached.
func (s *State) ShouldStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested || s.completed || s.iteration >= s.maxIterations
}

// Workspace returns the sandbox handle, nil when none is attached.
func (s *State) Workspace() *sandbox.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace
}

// SetWorkspace attaches a sandbox handle after creation.
func (s *State) SetWorkspace(ws *sandbox.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspace = ws
	s.touchLocked()
}

// LastUpdated returns the time of the last mutation.
func (s *State) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// markSoftWarned returns true the first time it is called; the soft
// iteration warning fires once.
func (s *State) markSoftWarned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.softWarned {
		return false
	}
	s.softWarned = true
	return true
}

func (s *State) markFinalWarned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalWarned {
		return false
	}
	s.finalWarned = true
	return true
}

func (s *State) terminalLocked() bool {
	return s.completed
}

func softWarningIteration(max int) int {
	return int(math.Ceil(ApproachThreshold * float64(max)))
}
