// Package orchestrator implements the turn engine's Orchestrator (C13,
// spec §4.8): it is the only component that mutates agent.AgentState. One
// Run drives the Reason/Act loop to a terminal state — the model selects
// finish, the turn budget is exhausted, or a fatal error occurs — reading
// state from a store.Store, building prompts via prompt.Builder, asking
// comm.Communicator for the next decision, dispatching tool calls through
// dedupe.Deduper and tool.Executor, recording outcomes with
// loopdetect.Detector, and persisting after every step.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/canon"
	"github.com/loopforge/agentturn/agent/comm"
	"github.com/loopforge/agentturn/agent/dedupe"
	"github.com/loopforge/agentturn/agent/events"
	"github.com/loopforge/agentturn/agent/interrupt"
	"github.com/loopforge/agentturn/agent/loopdetect"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/reminder"
	"github.com/loopforge/agentturn/agent/session"
	"github.com/loopforge/agentturn/agent/store"
	"github.com/loopforge/agentturn/agent/telemetry"
	"github.com/loopforge/agentturn/agent/tool"
)

// Config carries the recognized configuration options of spec §6.
type Config struct {
	// MaxTurns bounds the length of the turn log (controller turns
	// included): no new step starts once len(Turns) >= MaxTurns, and the run
	// then fails with ErrKindMaxTurnsExceeded. Must be >= 1.
	MaxTurns int
	// UseFunctionCalling enables the native function-calling path when the
	// adapter and tool catalog support it; the Communicator falls back to
	// Re/Act JSON whenever no function call is returned.
	UseFunctionCalling bool
	// DedupeStalenessThreshold is the default TTL a tool result remains
	// eligible for dedupe reuse, absent a tool-specific override.
	DedupeStalenessThreshold time.Duration
}

// DefaultConfig returns the engine's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxTurns:                 25,
		UseFunctionCalling:       true,
		DedupeStalenessThreshold: 5 * time.Minute,
	}
}

// Reasoner is the optional seam to a reasoning engine (C12) the
// orchestrator may consult before driving the turn loop. Chain-of-Thought
// and Tree-of-Thoughts engines both satisfy this by returning their
// completed artifact alongside a short textual conclusion the Orchestrator
// seeds into the prompt as guidance (spec §4.9; the reasoning artifact
// itself is stored on AgentState.CurrentReasoningChain/Tree for callers to
// inspect).
type Reasoner interface {
	Reason(ctx context.Context, goal string) (conclusion string, chain *agent.ReasoningChain, tree *agent.ReasoningTree, err error)
}

// Orchestrator wires every core subsystem into one turn loop.
type Orchestrator struct {
	Store        store.Store
	Registry     tool.Registry
	Executor     *tool.Executor
	Deduper      *dedupe.Deduper
	LoopDetector *loopdetect.Detector
	Communicator *comm.Communicator
	Builder      *prompt.Builder
	Bus          events.Bus
	Logger       telemetry.Logger
	Reasoner     Reasoner
	// Sessions, if set, tracks each Run invocation's RunMeta under its
	// RunOptions.SessionID (spec §3's supplemented conversational-container
	// concept). Optional: a nil Sessions store means runs are tracked only
	// through their own AgentState, as the teacher's bare engine would.
	Sessions session.Store
	// Reminders, if set, is consulted at the start of every step to inject
	// rate-limited backstage guidance (e.g. a repeated-failure nudge) into
	// the built prompt, run-scoped by RunResult.RunID (spec §3's
	// supplemented system-reminders feature). Optional.
	Reminders *reminder.Engine
	Config    Config
}

// New constructs an Orchestrator and wires exec's ToolCallStarted/
// ToolCallCompleted hooks to the event bus (spec §4.3: "For every outcome
// the executor emits ToolCallStarted before and ToolCallCompleted after").
// Bus, Logger, and Reasoner may be nil; Logger defaults to a no-op.
func New(st store.Store, reg tool.Registry, exec *tool.Executor, dd *dedupe.Deduper, ld *loopdetect.Detector, communicator *comm.Communicator, builder *prompt.Builder, bus events.Bus, logger telemetry.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	o := &Orchestrator{
		Store:        st,
		Registry:     reg,
		Executor:     exec,
		Deduper:      dd,
		LoopDetector: ld,
		Communicator: communicator,
		Builder:      builder,
		Bus:          bus,
		Logger:       logger,
		Config:       cfg,
	}

	exec.OnStarted = func(ctx context.Context, toolName string, params map[string]any) {
		agentID, turnIndex, ok := toolCallContext(ctx)
		if !ok {
			return
		}
		o.publish(ctx, events.NewToolCallStarted(agentID, turnIndex, toolName, params))
	}
	exec.OnCompleted = func(ctx context.Context, result *agent.ToolExecutionResult, outcome tool.Outcome) {
		agentID, turnIndex, ok := toolCallContext(ctx)
		if !ok {
			return
		}
		o.publish(ctx, events.NewToolCallCompleted(agentID, turnIndex, result.Tool, string(outcome), result.Success, time.Duration(result.ExecutionTime)))
	}

	return o
}

// RunResult is the user-visible outcome of one Run (spec §7).
type RunResult struct {
	// RunID identifies this particular Run invocation, distinct from
	// AgentID (one agent can be Run multiple times, e.g. across a paused
	// session). Only meaningful in combination with Orchestrator.Sessions.
	RunID       string
	Succeeded   bool
	FinalOutput string
	Err         error
	ErrorKind   agent.ErrorKind
	TotalTurns  int
	Duration    time.Duration
	State       *agent.AgentState
}

// RunOptions seeds a new run. Additional/Metadata are ignored once a run for
// AgentID already has persisted state — Goal is immutable after first set
// (spec §3). SessionID is only meaningful when Orchestrator.Sessions is set;
// it groups this run with any others sharing the same conversation thread.
type RunOptions struct {
	Additional *agent.SeedMessages
	Metadata   map[string]any
	SessionID  string
	// Interrupt, if set, is polled for a pending pause request at every
	// turn boundary; when one is observed, Run blocks on
	// Interrupt.WaitResume before continuing, merging the resume request's
	// Additional seed messages into state (spec §3 supplemented
	// pause/resume signals feature).
	Interrupt *interrupt.Controller
}

// Run drives agentID's turn loop to a terminal state: the model selects
// finish, MaxTurns is exhausted, or a fatal error (cancellation or a state
// save failure) occurs. It persists state after every step.
func (o *Orchestrator) Run(ctx context.Context, agentID agent.ID, goal string, opts RunOptions) (*RunResult, error) {
	start := time.Now()

	state, err := o.loadOrCreate(ctx, agentID, goal, opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	o.trackRunStart(ctx, agentID, runID, opts.SessionID)

	o.publish(ctx, events.NewRunStarted(string(agentID), state.Goal))

	if o.Reasoner != nil && state.CurrentReasoningChain == nil && state.CurrentReasoningTree == nil && len(state.Turns) == 0 {
		if err := o.consultReasoner(ctx, state); err != nil && agent.KindOf(err) == agent.ErrKindCancelled {
			return o.abort(ctx, agentID, runID, opts.SessionID, state, start, err)
		}
		// Any other reasoning failure is non-fatal: the turn loop proceeds
		// without the extra guidance a reasoning engine would have seeded.
	}

	maxTurns := o.Config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	for len(state.Turns) < maxTurns {
		if ctx.Err() != nil {
			// Cancellation observed at a turn boundary before the step
			// began: no state mutation, no events for this step (spec §8
			// property 8).
			return o.abort(ctx, agentID, runID, opts.SessionID, state, start, agent.NewError(agent.ErrKindCancelled, "run cancelled before step", agent.ErrCancelled))
		}

		if opts.Interrupt != nil {
			if _, paused := opts.Interrupt.PollPause(); paused {
				o.trackRunEnd(ctx, agentID, runID, opts.SessionID, session.RunStatusPaused, "")
				resume, err := opts.Interrupt.WaitResume(ctx)
				if err != nil {
					return o.abort(ctx, agentID, runID, opts.SessionID, state, start, agent.NewError(agent.ErrKindCancelled, "run cancelled while paused", err))
				}
				if resume.Additional != nil {
					state.AdditionalMessages = mergeSeedMessages(state.AdditionalMessages, resume.Additional)
				}
				o.trackRunEnd(ctx, agentID, runID, opts.SessionID, session.RunStatusRunning, "")
			}
		}

		turnIndex := len(state.Turns)
		o.publish(ctx, events.NewStepStarted(string(agentID), turnIndex))

		outcome, err := o.step(ctx, agentID, runID, state, turnIndex)
		if err != nil {
			if agent.KindOf(err) == agent.ErrKindCancelled {
				return o.abort(ctx, agentID, runID, opts.SessionID, state, start, err)
			}
			// A save failure is fatal for the current turn (spec §7).
			return o.finish(ctx, agentID, runID, opts.SessionID, state, start, false, "", err, agent.KindOf(err))
		}

		o.publish(ctx, events.NewStepCompleted(string(agentID), turnIndex))

		if outcome.terminal {
			return o.finish(ctx, agentID, runID, opts.SessionID, state, start, true, outcome.final, nil, "")
		}
	}

	return o.finish(ctx, agentID, runID, opts.SessionID, state, start, false, "",
		agent.NewError(agent.ErrKindMaxTurnsExceeded, fmt.Sprintf("exceeded max turns (%d)", maxTurns), nil),
		agent.ErrKindMaxTurnsExceeded)
}

// trackRunStart registers sessionID (creating it if new) and upserts a
// running RunMeta for runID, when Sessions is configured. Failures here are
// logged and otherwise ignored: session tracking is additive observability,
// never a condition the turn loop itself depends on.
func (o *Orchestrator) trackRunStart(ctx context.Context, agentID agent.ID, runID, sessionID string) {
	if o.Sessions == nil || sessionID == "" {
		return
	}
	if _, err := o.Sessions.CreateSession(ctx, sessionID, time.Now()); err != nil && err != session.ErrSessionEnded {
		o.Logger.Warn(ctx, "session create failed", "session_id", sessionID, "error", err.Error())
	}
	if err := o.Sessions.UpsertRun(ctx, session.RunMeta{
		AgentID:   agentID,
		RunID:     runID,
		SessionID: sessionID,
		Status:    session.RunStatusRunning,
	}); err != nil {
		o.Logger.Warn(ctx, "run meta upsert failed", "run_id", runID, "error", err.Error())
	}
}

// trackRunEnd records a RunStatus transition for runID (terminal or, for
// pause/resume, transient), when Sessions is configured.
func (o *Orchestrator) trackRunEnd(ctx context.Context, agentID agent.ID, runID, sessionID string, status session.RunStatus, kind agent.ErrorKind) {
	if o.Sessions == nil || sessionID == "" {
		return
	}
	meta := session.RunMeta{AgentID: agentID, RunID: runID, SessionID: sessionID, Status: status}
	if kind != "" {
		meta.Metadata = map[string]any{"error_kind": string(kind)}
	}
	if err := o.Sessions.UpsertRun(ctx, meta); err != nil {
		o.Logger.Warn(ctx, "run meta upsert failed", "run_id", runID, "error", err.Error())
	}
}

// consultReasoner runs the configured reasoning engine once at the start of
// a fresh run, stores its artifact on AgentState for callers to inspect,
// and seeds its conclusion as a system guidance message the Message
// Builder includes in every subsequent turn's prompt (spec §4.9: the
// orchestrator "may consult" reasoning; the artifact itself is
// informational, not a substitute for the turn loop's own decisions).
func (o *Orchestrator) consultReasoner(ctx context.Context, state *agent.AgentState) error {
	conclusion, chain, tree, err := o.Reasoner.Reason(ctx, state.Goal)
	if err != nil {
		return err
	}
	state.CurrentReasoningChain = chain
	state.CurrentReasoningTree = tree
	if conclusion == "" {
		return nil
	}
	if state.AdditionalMessages == nil {
		state.AdditionalMessages = &agent.SeedMessages{}
	}
	state.AdditionalMessages.System = append(state.AdditionalMessages.System,
		"Reasoning guidance: "+conclusion)
	return nil
}

// mergeSeedMessages appends extra's messages onto base, allocating base if
// nil. Used to fold a resume request's injected messages into the seed
// messages the Message Builder renders on the next turn.
func mergeSeedMessages(base, extra *agent.SeedMessages) *agent.SeedMessages {
	if base == nil {
		base = &agent.SeedMessages{}
	}
	if extra == nil {
		return base
	}
	base.System = append(base.System, extra.System...)
	base.Assistant = append(base.Assistant, extra.Assistant...)
	base.User = append(base.User, extra.User...)
	return base
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, agentID agent.ID, goal string, opts RunOptions) (*agent.AgentState, error) {
	if st, ok, err := o.Store.Load(ctx, agentID); err == nil && ok {
		return st, nil
	} else if err != nil {
		o.Logger.Warn(ctx, "state load failed, starting fresh", "agent_id", string(agentID), "error", err.Error())
	}
	return &agent.AgentState{
		AgentID:            agentID,
		Goal:               goal,
		UpdatedAt:          time.Now(),
		AdditionalMessages: opts.Additional,
		Metadata:           opts.Metadata,
	}, nil
}

type stepOutcome struct {
	terminal bool
	final    string
}

// step executes exactly one Reason/Act iteration: build the prompt, ask
// the Communicator for a decision, dispatch it, persist state. It returns a
// Go error only for the two conditions that abort or fail the whole run:
// caller cancellation and a state-save failure (spec §7).
func (o *Orchestrator) step(ctx context.Context, agentID agent.ID, runID string, state *agent.AgentState, turnIndex int) (stepOutcome, error) {
	messages := o.Builder.Build(state)
	if o.Reminders != nil {
		if rems := o.Reminders.Snapshot(runID, turnIndex); len(rems) > 0 {
			messages = reminder.InjectMessages(messages, rems)
		}
	}
	toolDescs := o.Registry.All()
	useFn := o.Config.UseFunctionCalling && len(toolDescs) > 0

	msg, _, err := o.Communicator.Call(ctx, string(agentID), turnIndex, messages, toolDescs, useFn)
	if err != nil {
		if agent.KindOf(err) == agent.ErrKindCancelled {
			return stepOutcome{}, err
		}
		return o.recordLLMFailure(ctx, agentID, state, turnIndex, err)
	}

	if msg.StatusTitle != "" || msg.StatusDetails != "" || msg.ProgressPct >= 0 {
		o.publish(ctx, events.NewStatusUpdate(string(agentID), turnIndex, msg.StatusTitle, msg.StatusDetails, msg.ProgressPct))
	}

	switch msg.Action {
	case agent.ActionFinish:
		o.appendTurn(state, turnIndex, msg, nil, nil, false)
		if err := o.save(ctx, agentID, state); err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{terminal: true, final: msg.ActionInput.Final}, nil

	case agent.ActionToolCall:
		return o.processToolCall(ctx, agentID, runID, state, turnIndex, msg)

	case agent.ActionPlan, agent.ActionRetry:
		o.appendTurn(state, turnIndex, msg, nil, nil, false)
		if err := o.save(ctx, agentID, state); err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{}, nil

	default:
		// An action the model invented outside the documented contract is
		// treated like "plan": recorded, loop continues, nudging the model
		// back toward the contract on the next turn via the history.
		o.appendTurn(state, turnIndex, msg, nil, nil, false)
		if err := o.save(ctx, agentID, state); err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{}, nil
	}
}

// recordLLMFailure appends a failure turn for an LLM-layer error (timeout,
// adapter failure, or Re/Act parse failure / invalid function arguments):
// these are recoverable, so the loop continues on the next iteration (spec
// §7). ErrKindLLMParseError additionally emits the "Invalid model output"
// status update exercised by spec §8 scenario S5.
func (o *Orchestrator) recordLLMFailure(ctx context.Context, agentID agent.ID, state *agent.AgentState, turnIndex int, llmErr error) (stepOutcome, error) {
	kind := agent.KindOf(llmErr)
	if kind == agent.ErrKindLLMParseError {
		o.publish(ctx, events.NewStatusUpdate(string(agentID), turnIndex, "Invalid model output", llmErr.Error(), -1))
	}

	turn := &agent.AgentTurn{
		Index:     turnIndex,
		TurnID:    uuid.NewString(),
		CreatedAt: time.Now(),
		ToolResult: &agent.ToolExecutionResult{
			Success:       false,
			Tool:          "llm",
			Error:         llmErr.Error(),
			Output:        map[string]any{"type": string(kind)},
			CreatedAtUnix: time.Now().UnixNano(),
		},
	}
	state.Turns = append(state.Turns, turn)
	state.UpdatedAt = turn.CreatedAt

	if err := o.save(ctx, agentID, state); err != nil {
		return stepOutcome{}, err
	}
	return stepOutcome{}, nil
}

// processToolCall implements spec §4.8's process_tool_call: consult the
// Deduplicator first, otherwise invoke the Tool Executor, record the
// outcome with the Loop Detector, and — on failure — append a controller
// retry-hint turn, escalating to a loop-breaker hint once the Loop
// Detector confirms repeated failure.
func (o *Orchestrator) processToolCall(ctx context.Context, agentID agent.ID, runID string, state *agent.AgentState, turnIndex int, msg *agent.ModelMessage) (stepOutcome, error) {
	toolName := msg.ActionInput.Tool
	params := msg.ActionInput.Params
	desc, _ := o.Registry.Lookup(toolName)
	turnID := canon.Hash(toolName, params)
	call := &agent.ToolCallRequest{Tool: toolName, Params: params, TurnID: turnID}

	if cached, hit := o.Deduper.Lookup(ctx, state, desc, toolName, params); hit {
		o.appendTurn(state, turnIndex, msg, call, cached, false)
		if err := o.save(ctx, agentID, state); err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{}, nil
	}

	var ttlOverride time.Duration
	if desc != nil {
		if nanos, ok := tool.CustomTTL(desc); ok {
			ttlOverride = time.Duration(nanos)
		}
	}

	execCtx := withToolCallContext(ctx, string(agentID), turnIndex)
	result, err := o.Executor.Execute(execCtx, toolName, params)
	if err != nil {
		if agent.KindOf(err) == agent.ErrKindCancelled {
			return stepOutcome{}, err
		}
		return stepOutcome{}, err
	}
	result.TurnID = turnID

	o.LoopDetector.RecordToolCall(string(agentID), toolName, params, result.Success)
	_ = o.Deduper.Remember(ctx, toolName, params, result, ttlOverride)

	o.appendTurn(state, turnIndex, msg, call, result, false)

	if !result.Success {
		o.appendControllerTurn(state, fmt.Sprintf("Tool %q failed: %s. Retry with the required params.", toolName, result.Error))
		if o.LoopDetector.DetectRepeatedFailures(string(agentID), toolName, params) {
			o.appendControllerTurn(state, fmt.Sprintf("Stop repeating %q with the same parameters; inspect the validation detail or try a different tool.", toolName))
			if o.Reminders != nil {
				o.Reminders.AddReminder(runID, reminder.Reminder{
					ID:              "loop_detected." + toolName,
					Text:            fmt.Sprintf("You have repeated the %q tool call with the same parameters multiple times without success. Stop retrying it verbatim; inspect the validation detail or choose a different approach.", toolName),
					Priority:        reminder.TierGuidance,
					Attachment:      reminder.AttachmentTurn,
					MaxPerRun:       3,
					MinTurnsBetween: 2,
				})
			}
		}
	}

	if err := o.save(ctx, agentID, state); err != nil {
		return stepOutcome{}, err
	}
	return stepOutcome{}, nil
}

// appendTurn appends a model-decision turn at turnIndex with an optional
// single tool call and result.
func (o *Orchestrator) appendTurn(state *agent.AgentState, turnIndex int, msg *agent.ModelMessage, call *agent.ToolCallRequest, result *agent.ToolExecutionResult, synthetic bool) {
	turn := &agent.AgentTurn{
		Index:      turnIndex,
		TurnID:     uuid.NewString(),
		LLMMessage: msg,
		ToolCall:   call,
		ToolResult: result,
		Synthetic:  synthetic,
		CreatedAt:  time.Now(),
	}
	state.Turns = append(state.Turns, turn)
	state.UpdatedAt = turn.CreatedAt
}

// appendControllerTurn appends an engine-synthesized "retry" turn nudging
// the model toward recovery. It always uses a monotonic index equal to the
// turn log's current length, so it never collides with the next naturally
// produced turn (spec §9 Open Question, resolved via monotonic indices plus
// the explicit Synthetic marker rather than re-numbering prior turns).
func (o *Orchestrator) appendControllerTurn(state *agent.AgentState, summary string) {
	turn := &agent.AgentTurn{
		Index:  len(state.Turns),
		TurnID: uuid.NewString(),
		LLMMessage: &agent.ModelMessage{
			Action:      agent.ActionRetry,
			ActionInput: agent.ActionInput{Summary: summary},
		},
		Synthetic: true,
		CreatedAt: time.Now(),
	}
	state.Turns = append(state.Turns, turn)
	state.UpdatedAt = turn.CreatedAt
}

func (o *Orchestrator) save(ctx context.Context, agentID agent.ID, state *agent.AgentState) error {
	if err := o.Store.Save(ctx, agentID, state); err != nil {
		return agent.NewError(agent.ErrKindStateSaveFailed, "persist agent state", err)
	}
	return nil
}

// abort handles caller cancellation: it does not persist state (the step
// that observed cancellation never mutated it) and emits RunCompleted with
// Succeeded=false.
func (o *Orchestrator) abort(ctx context.Context, agentID agent.ID, runID, sessionID string, state *agent.AgentState, start time.Time, cause error) (*RunResult, error) {
	dur := time.Since(start)
	kind := agent.KindOf(cause)
	o.publish(ctx, events.NewRunCompleted(string(agentID), false, string(kind), len(state.Turns), dur))
	o.trackRunEnd(ctx, agentID, runID, sessionID, session.RunStatusCanceled, kind)
	if o.Reminders != nil {
		o.Reminders.ClearRun(runID)
	}
	return &RunResult{
		RunID:      runID,
		Succeeded:  false,
		Err:        cause,
		ErrorKind:  kind,
		TotalTurns: len(state.Turns),
		Duration:   dur,
		State:      state,
	}, cause
}

func (o *Orchestrator) finish(ctx context.Context, agentID agent.ID, runID, sessionID string, state *agent.AgentState, start time.Time, succeeded bool, final string, cause error, kind agent.ErrorKind) (*RunResult, error) {
	dur := time.Since(start)
	o.publish(ctx, events.NewRunCompleted(string(agentID), succeeded, string(kind), len(state.Turns), dur))

	status := session.RunStatusFailed
	if succeeded {
		status = session.RunStatusCompleted
	}
	o.trackRunEnd(ctx, agentID, runID, sessionID, status, kind)
	if o.Reminders != nil {
		o.Reminders.ClearRun(runID)
	}

	res := &RunResult{
		RunID:       runID,
		Succeeded:   succeeded,
		FinalOutput: final,
		Err:         cause,
		ErrorKind:   kind,
		TotalTurns:  len(state.Turns),
		Duration:    dur,
		State:       state,
	}
	if cause != nil && kind == agent.ErrKindStateSaveFailed {
		return res, cause
	}
	return res, nil
}

func (o *Orchestrator) publish(ctx context.Context, evt events.Event) {
	if o.Bus == nil {
		return
	}
	if err := o.Bus.Publish(ctx, evt); err != nil {
		o.Logger.Warn(ctx, "event subscriber error", "event", evt.Kind(), "error", err.Error())
	}
}
