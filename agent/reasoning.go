package agent

import "time"

// StepType enumerates the stage a Chain-of-Thought step belongs to (spec
// §4.9).
type StepType string

const (
	StepAnalysis   StepType = "analysis"
	StepPlanning   StepType = "planning"
	StepDecision   StepType = "decision"
	StepObservation StepType = "observation"
	StepEvaluation StepType = "evaluation"
	StepSynthesis  StepType = "synthesis"
)

// ReasoningStep is one entry in a ReasoningChain.
type ReasoningStep struct {
	StepNumber int
	StepType   StepType
	Reasoning  string
	Confidence float64
	Insights   []string
}

// ReasoningChain is the first-class Chain-of-Thought artifact a CoT engine
// produces and hands to the orchestrator at completion (spec §3).
type ReasoningChain struct {
	Goal            string
	Steps           []*ReasoningStep
	FinalConfidence float64
	Conclusion      string
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// ThoughtType enumerates the kind of content a ThoughtNode carries.
type ThoughtType string

const (
	ThoughtHypothesis ThoughtType = "hypothesis"
	ThoughtAnalysis   ThoughtType = "analysis"
	ThoughtAlternative ThoughtType = "alternative"
)

// ThoughtState is the lifecycle state of a ThoughtNode: live -> evaluated ->
// (leaf | expanded), with any state able to transition to pruned, which is
// terminal (spec §4.9).
type ThoughtState string

const (
	ThoughtLive      ThoughtState = "live"
	ThoughtEvaluated ThoughtState = "evaluated"
	ThoughtPruned    ThoughtState = "pruned"
	ThoughtLeaf      ThoughtState = "leaf"
	ThoughtExpanded  ThoughtState = "expanded"
)

// ThoughtNode is one node in a ReasoningTree.
type ThoughtNode struct {
	NodeID      string
	ParentID    string
	Depth       int
	Thought     string
	ThoughtType ThoughtType
	Score       float64
	State       ThoughtState
	Children    []string
}

// ExplorationStrategy selects the ToT expansion policy (spec §4.9).
type ExplorationStrategy string

const (
	StrategyBestFirst    ExplorationStrategy = "best_first"
	StrategyBreadthFirst ExplorationStrategy = "breadth_first"
	StrategyDepthFirst   ExplorationStrategy = "depth_first"
	StrategyBeamSearch   ExplorationStrategy = "beam_search"
	StrategyMonteCarlo   ExplorationStrategy = "monte_carlo"
)

// ReasoningTree is the first-class Tree-of-Thoughts artifact a ToT engine
// produces. Invariants (spec §4.9, §8 property 10): exactly one root;
// len(Nodes) <= MaxNodes; every node's Depth <= MaxDepth; pruned nodes are
// never expanded.
type ReasoningTree struct {
	RootID              string
	Nodes               map[string]*ThoughtNode
	MaxDepth            int
	MaxNodes            int
	ExplorationStrategy ExplorationStrategy
	BestPath            []string
}
