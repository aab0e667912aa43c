package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/telemetry"
)

// PollInterval is the sleep between ticks while waiting for input.
const PollInterval = 500 * time.Millisecond

// DispatchOutcome is what the dispatcher hands back after one turn's tool
// invocations ran.
type DispatchOutcome struct {
	// Observation is the message to append to the conversation log.
	Observation llm.Message

	// ShouldFinish is true iff the terminal wave executed a successful
	// finish_scan or agent_finish.
	ShouldFinish bool
}

// Dispatcher executes the tool invocations of one turn against the
// registry and the sandbox.
type Dispatcher interface {
	Dispatch(ctx context.Context, state *State, invocations []llm.ToolInvocation) (DispatchOutcome, error)
}

// TickOutcome is what one loop tick decided.
type TickOutcome string

const (
	// TickContinue means run the next iteration immediately.
	TickContinue TickOutcome = "continue"

	// TickYield means sleep one poll interval, then tick again.
	TickYield TickOutcome = "yield"

	// TickFinished means the agent completed its task.
	TickFinished TickOutcome = "finished"

	// TickStopped means the agent halted on a stop request or the
	// iteration bound.
	TickStopped TickOutcome = "stopped"

	// TickFailed means the agent hit an unrecoverable error.
	TickFailed TickOutcome = "failed"
)

// Result is what a loop returns when it exits.
type Result struct {
	// Status is the agent's final lifecycle state.
	Status graph.Status

	// FinalResult is the text the agent finished with, if any.
	FinalResult string

	// Iterations is how many ticks ran.
	Iterations int

	// Err is set when the loop exited on an error.
	Err error
}

// Deps are the collaborators a loop needs. All fields are required except
// Logger, which defaults to slog.Default.
type Deps struct {
	// Graph is the process-wide agent graph and mailbox.
	Graph *graph.Graph

	// Client performs completions. Usually a QueuedClient so all agents
	// share one admission queue.
	Client llm.Client

	// Prompt configures prompt assembly for this agent.
	Prompt llm.PromptConfig

	// Dispatcher runs parsed tool invocations.
	Dispatcher Dispatcher

	// Tracker accumulates per-agent usage. Optional.
	Tracker llm.UsageTracker

	// Interactive keeps terminal agents parked in waiting instead of
	// exiting the loop, so an operator can resume them.
	Interactive bool

	// Logger receives loop events.
	Logger *slog.Logger
}

func (d *Deps) validate() error {
	if d.Graph == nil {
		return fmt.Errorf("loop requires a graph")
	}
	if d.Client == nil {
		return fmt.Errorf("loop requires an LLM client")
	}
	if d.Dispatcher == nil {
		return fmt.Errorf("loop requires a dispatcher")
	}
	return nil
}

// Loop drives one agent's state tick by tick.
type Loop struct {
	state *State
	deps  Deps
	log   *slog.Logger
}

// NewLoop creates a loop for an agent.
func NewLoop(state *State, deps Deps) (*Loop, error) {
	if state == nil {
		return nil, fmt.Errorf("loop requires agent state")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		state: state,
		deps:  deps,
		log:   logger.With("agent_id", state.AgentID(), "agent", state.AgentName()),
	}, nil
}

// State returns the agent state the loop drives.
func (l *Loop) State() *State {
	return l.state
}

// Run ticks until the agent reaches a terminal state or the context is
// cancelled. Cancellation is a clean stop, not an error.
func (l *Loop) Run(ctx context.Context) Result {
	l.setStatus(graph.StatusRunning)

	for {
		select {
		case <-ctx.Done():
			l.setStatus(graph.StatusStopped)
			return Result{
				Status:      graph.StatusStopped,
				FinalResult: l.state.FinalResult(),
				Iterations:  l.state.Iteration(),
			}
		default:
		}

		outcome := l.Tick(ctx)
		switch outcome {
		case TickContinue:
		case TickYield:
			select {
			case <-ctx.Done():
			case <-time.After(PollInterval):
			}
		case TickFinished:
			l.setStatus(graph.StatusCompleted)
			return Result{
				Status:      graph.StatusCompleted,
				FinalResult: l.state.FinalResult(),
				Iterations:  l.state.Iteration(),
			}
		case TickStopped:
			l.setStatus(graph.StatusStopped)
			return Result{
				Status:      graph.StatusStopped,
				FinalResult: l.state.FinalResult(),
				Iterations:  l.state.Iteration(),
			}
		case TickFailed:
			l.setStatus(graph.StatusFailed)
			return Result{
				Status:     graph.StatusFailed,
				Iterations: l.state.Iteration(),
				Err:        fmt.Errorf("agent %s failed: %v", l.state.AgentID(), lastError(l.state)),
			}
		}
	}
}

// Tick runs one scheduler step: drain mailbox, waiting check, termination
// check, llm-failed check, iteration tick, model call, dispatch.
func (l *Loop) Tick(ctx context.Context) TickOutcome {
	st := l.state

	l.drainMailbox()

	if st.IsWaiting() {
		if st.HasWaitingTimeout() {
			st.ResumeFromWaiting("")
			st.AddMessage(llm.RoleUser, "<system_notice>Waiting timeout reached after 600 seconds. Resuming; reassess your task and continue.</system_notice>")
			l.setStatus(graph.StatusRunning)
		} else {
			return TickYield
		}
	}

	if st.ShouldStop() {
		if st.IsCompleted() {
			if l.deps.Interactive {
				st.EnterWaiting("task completed", false)
				l.setStatus(graph.StatusWaiting)
				return TickYield
			}
			return TickFinished
		}
		if l.deps.Interactive && !st.StopRequested() {
			// Iteration bound hit: park instead of exiting.
			st.EnterWaiting("max iterations reached", false)
			l.setStatus(graph.StatusWaiting)
			return TickYield
		}
		return TickStopped
	}

	if st.IsLLMFailed() {
		return TickYield
	}

	iter := st.IncrementIteration()
	l.injectIterationWarnings(iter)

	tracer := telemetry.Current()
	if tracer != nil {
		var span trace.Span
		ctx, span = tracer.StartIteration(ctx, st.AgentID(), iter)
		defer span.End()
	}

	completion, err := l.deps.Client.Complete(ctx, llm.AssemblePrompt(l.deps.Prompt, st.Messages()))
	if tracer != nil {
		tracer.RecordLLMRequest(ctx, st.AgentID(), err != nil)
	}
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-request: clean pause, not a model failure.
			return TickYield
		}
		return l.handleLLMFailure(err)
	}
	if l.deps.Tracker != nil {
		l.deps.Tracker.Record(st.AgentID(), completion.Usage)
	}

	content := llm.TruncateAtStop(completion.Content)
	if llm.IsEmptyResponse(content) {
		l.log.Warn("empty model response", "iteration", iter)
		st.AddMessage(llm.RoleUser, llm.EmptyResponseCorrective)
		return TickContinue
	}

	assistant := llm.NewTextMessage(llm.RoleAssistant, content)
	assistant.Thinking = completion.Thinking
	st.AddFullMessage(assistant)

	invocations := llm.ParseToolInvocations(content)
	if len(invocations) == 0 {
		return TickContinue
	}

	outcome, err := l.deps.Dispatcher.Dispatch(ctx, st, invocations)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-dispatch: clean pause, the next tick observes
			// the stop flag or context.
			return TickYield
		}
		st.AddError(err.Error())
		l.log.Error("dispatch failed", "error", err, "iteration", iter)
		if !l.deps.Interactive {
			return TickFailed
		}
		st.EnterWaiting("dispatch error", false)
		l.setStatus(graph.StatusWaiting)
		return TickYield
	}

	st.AddFullMessage(outcome.Observation)

	if outcome.ShouldFinish {
		if !st.IsCompleted() {
			st.SetCompleted(assistant.Text())
		}
		if l.deps.Interactive {
			st.EnterWaiting("task completed", false)
			l.setStatus(graph.StatusWaiting)
			return TickYield
		}
		return TickFinished
	}
	return TickContinue
}

// drainMailbox consumes unread envelopes, appends them to the log in
// timestamp order, and resumes a waiting agent when allowed. With the
// llm-failed flag set, only a user message resumes the agent; other
// envelopes are still appended.
func (l *Loop) drainMailbox() {
	st := l.state
	envelopes := l.deps.Graph.TakeUnread(st.AgentID())
	if len(envelopes) == 0 {
		return
	}

	resume := false
	for _, env := range envelopes {
		st.AddMessage(llm.RoleUser, formatEnvelope(env))
		if st.IsWaiting() {
			if !st.IsLLMFailed() || env.From == graph.UserSender {
				resume = true
			}
		}
	}
	if resume {
		st.ResumeFromWaiting("")
		l.setStatus(graph.StatusRunning)
		l.log.Debug("resumed by message", "count", len(envelopes))
	}
}

// injectIterationWarnings appends the soft warning at ceil(0.85*max) and
// the hard warning at max-3, each at most once.
func (l *Loop) injectIterationWarnings(iter int) {
	st := l.state
	max := st.MaxIterations()

	if iter >= softWarningIteration(max) && iter < max-FinalWarningWindow {
		if st.markSoftWarned() {
			st.AddMessage(llm.RoleUser, fmt.Sprintf(
				"<system_notice>You are approaching your iteration limit (%d of %d). Prioritize the most promising leads and prepare to wrap up.</system_notice>",
				iter, max))
		}
	}
	if iter >= max-FinalWarningWindow {
		if st.markFinalWarned() {
			st.AddMessage(llm.RoleUser, fmt.Sprintf(
				"<system_notice>CRITICAL: only %d iterations remain. You must finish now: report any findings and call your finish tool.</system_notice>",
				max-iter))
		}
	}
}

func (l *Loop) handleLLMFailure(err error) TickOutcome {
	st := l.state
	if l.deps.Tracker != nil {
		l.deps.Tracker.RecordFailure(st.AgentID())
	}

	reqErr := llm.AsRequestError(err)
	kind := llm.FailureOther
	if reqErr != nil {
		kind = reqErr.Kind
	}
	st.AddError(fmt.Sprintf("llm request failed (%s): %v", kind, err))
	l.log.Error("llm request failed", "kind", kind, "error", err)

	if !l.deps.Interactive {
		return TickFailed
	}
	st.EnterWaiting(fmt.Sprintf("llm failure: %s", kind), true)
	l.setStatus(graph.StatusLLMFailed)
	return TickYield
}

func (l *Loop) setStatus(s graph.Status) {
	if err := l.deps.Graph.SetStatus(l.state.AgentID(), s); err != nil {
		l.log.Debug("status update skipped", "status", s, "error", err)
	}
}

func formatEnvelope(env graph.Envelope) string {
	from := env.From
	if env.FromName != "" {
		from = fmt.Sprintf("%s (%s)", env.FromName, env.From)
	}
	return fmt.Sprintf("<incoming_message from=%q kind=%q priority=%q>\n%s\n</incoming_message>",
		from, env.Kind, env.Priority, env.Content)
}

func lastError(st *State) string {
	errs := st.Errors()
	if len(errs) == 0 {
		return "unknown error"
	}
	return errs[len(errs)-1]
}
