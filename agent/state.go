package agent

import "time"

// AgentState is the single source of truth for one agent run, keyed by a
// caller-supplied agent id. Turns are append-only and dense from index 0;
// nothing in this package ever rewrites a previously appended turn (spec §3,
// §8 property 1).
type AgentState struct {
	// AgentID is the stable identifier this state is keyed under in the
	// configured store.Store.
	AgentID ID
	// Goal is immutable after the first call to Run for this agent id.
	Goal string
	// Turns is the ordered, append-only turn log. Turns[i].Index == i for
	// every i.
	Turns []*AgentTurn
	// UpdatedAt records the wall-clock time of the most recent mutation.
	UpdatedAt time.Time
	// CurrentReasoningChain holds the in-progress Chain-of-Thought artifact,
	// if a reasoning engine is currently attached to this run.
	CurrentReasoningChain *ReasoningChain
	// CurrentReasoningTree holds the in-progress Tree-of-Thoughts artifact,
	// if a reasoning engine is currently attached to this run.
	CurrentReasoningTree *ReasoningTree
	// AdditionalMessages carries caller-seeded prompts partitioned by role,
	// appended by the Message Builder after the tool catalog and before the
	// history section (spec §4.7).
	AdditionalMessages *SeedMessages
	// Metadata is free-form, caller-owned state that travels with the run
	// but is never interpreted by the orchestrator.
	Metadata map[string]any
}

// SeedMessages partitions caller-supplied seed prompts by conversational
// role so the Message Builder can append them in system -> assistant -> user
// order (spec §4.7 step 4).
type SeedMessages struct {
	System    []string
	Assistant []string
	User      []string
}

// AgentTurn is one iteration of the turn loop. At most one of ToolCall or
// ToolCalls is ever set (spec §3 invariant); a tool result's TurnID is the
// canonical dedupe hash of (tool, params), not necessarily this turn's own
// TurnID.
type AgentTurn struct {
	// Index is this turn's position in AgentState.Turns. Dense from 0.
	Index int
	// TurnID uniquely identifies this turn within the run.
	TurnID string
	// LLMMessage is the model's decoded decision for this turn, if one was
	// produced (a turn created purely to record a tool result reuse may omit
	// it).
	LLMMessage *ModelMessage
	// ToolCall is the single tool invocation requested for this turn.
	ToolCall *ToolCallRequest
	// ToolCalls is the parallel set of tool invocations requested for this
	// turn. Mutually exclusive with ToolCall.
	ToolCalls []*ToolCallRequest
	// ToolResult is the outcome of ToolCall.
	ToolResult *ToolExecutionResult
	// ToolResults are the outcomes of ToolCalls, in the same order.
	ToolResults []*ToolExecutionResult
	// Synthetic marks controller-generated turns (retry hints, loop-breaker
	// hints) so readers can distinguish them from model-produced turns
	// without inspecting LLMMessage.Action (see spec §9 Open Question: the
	// spec resolves the index-collision ambiguity by using monotonic indices
	// with this explicit marker rather than re-numbering turns).
	Synthetic bool
	// CreatedAt records when this turn was appended.
	CreatedAt time.Time
}
