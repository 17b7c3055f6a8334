// Package cot implements the Chain-of-Thought reasoning engine (C12, spec
// §4.9): a fixed analysis -> planning -> strategy -> evaluation pipeline,
// each stage extracting {reasoning, confidence, insights[]} (and
// conclusion, for the evaluation stage) from a JSON response and appending
// an agent.ReasoningStep.
package cot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/reasoning"
)

// stage pairs a pipeline position with the agent.StepType it produces. The
// spec names the third stage "strategy"; the step-type taxonomy of spec §3
// has no distinct "strategy" entry, so it is recorded as StepDecision —
// the closest existing type to "committing to an approach" (see
// DESIGN.md).
type stage struct {
	label    string
	stepType agent.StepType
}

var pipeline = []stage{
	{label: "analysis", stepType: agent.StepAnalysis},
	{label: "planning", stepType: agent.StepPlanning},
	{label: "strategy", stepType: agent.StepDecision},
	{label: "evaluation", stepType: agent.StepEvaluation},
}

// Config tunes the engine (spec §6: max_reasoning_steps,
// enable_reasoning_validation, min_reasoning_confidence).
type Config struct {
	// MaxSteps caps how many pipeline stages run, in order, starting from
	// analysis. 0 or >= len(pipeline) runs the full four-stage pipeline.
	MaxSteps int
	// EnableValidation issues a fifth prompt that reviews the completed
	// chain before it is accepted.
	EnableValidation bool
	// MinConfidence is the threshold below which a failed validation sinks
	// the whole chain (spec §4.9).
	MinConfidence float64
}

// Engine drives the Chain-of-Thought pipeline over a Prompter.
type Engine struct {
	Prompter reasoning.Prompter
	Config   Config
}

// New constructs an Engine.
func New(p reasoning.Prompter, cfg Config) *Engine {
	return &Engine{Prompter: p, Config: cfg}
}

// Result is the outcome of one Run.
type Result struct {
	Chain     *agent.ReasoningChain
	Succeeded bool
}

type stageResponse struct {
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	Insights   []string `json:"insights"`
	Conclusion string   `json:"conclusion"`
}

type validationResponse struct {
	Valid bool   `json:"valid"`
	Notes string `json:"notes"`
}

// Run executes the pipeline for goal and returns the completed chain. An
// error here means the Prompter itself failed (adapter/timeout/parse
// error); a chain that completes but fails validation below
// MinConfidence is reported via Result.Succeeded=false, not an error.
func (e *Engine) Run(ctx context.Context, goal string) (*Result, error) {
	chain := &agent.ReasoningChain{Goal: goal, CreatedAt: time.Now()}

	steps := pipeline
	if e.Config.MaxSteps > 0 && e.Config.MaxSteps < len(pipeline) {
		steps = pipeline[:e.Config.MaxSteps]
	}

	var confidenceSum float64
	for i, st := range steps {
		resp, err := e.runStage(ctx, i+1, st, goal, chain.Steps)
		if err != nil {
			return nil, err
		}
		chain.Steps = append(chain.Steps, &agent.ReasoningStep{
			StepNumber: i + 1,
			StepType:   st.stepType,
			Reasoning:  resp.Reasoning,
			Confidence: resp.Confidence,
			Insights:   resp.Insights,
		})
		confidenceSum += resp.Confidence
		if st.stepType == agent.StepEvaluation {
			chain.Conclusion = resp.Conclusion
		}
	}
	if len(chain.Steps) > 0 {
		chain.FinalConfidence = confidenceSum / float64(len(chain.Steps))
	}

	succeeded := true
	if e.Config.EnableValidation {
		valid, err := e.validate(ctx, goal, chain)
		if err != nil {
			return nil, err
		}
		if !valid && chain.FinalConfidence < e.Config.MinConfidence {
			succeeded = false
		}
	}

	completed := time.Now()
	chain.CompletedAt = &completed
	return &Result{Chain: chain, Succeeded: succeeded}, nil
}

func (e *Engine) runStage(ctx context.Context, number int, st stage, goal string, prior []*agent.ReasoningStep) (*stageResponse, error) {
	system := "You are the reasoning core of an autonomous agent. Respond with a single JSON object: " +
		`{"reasoning": string, "confidence": number in [0,1], "insights": [string], "conclusion": string (evaluation stage only)}.`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", goal)
	fmt.Fprintf(&sb, "Stage %d of %d: %s\n", number, len(pipeline), st.label)
	if len(prior) > 0 {
		sb.WriteString("Prior steps:\n")
		for _, s := range prior {
			fmt.Fprintf(&sb, "- [%s] %s (confidence %.2f)\n", s.StepType, s.Reasoning, s.Confidence)
		}
	}
	switch st.stepType {
	case agent.StepAnalysis:
		sb.WriteString("Analyze the goal: what is being asked, what constraints apply, what information is missing.\n")
	case agent.StepPlanning:
		sb.WriteString("Plan an approach: what steps would achieve the goal.\n")
	case agent.StepDecision:
		sb.WriteString("Commit to a strategy: choose among the planned approaches and justify the choice.\n")
	case agent.StepEvaluation:
		sb.WriteString("Evaluate the chosen strategy and produce a final conclusion for the goal.\n")
	}

	text, err := e.Prompter.Prompt(ctx, system, sb.String())
	if err != nil {
		return nil, err
	}
	var resp stageResponse
	if err := reasoning.DecodeJSON(text, &resp); err != nil {
		return nil, agent.NewError(agent.ErrKindLLMParseError, "decode chain-of-thought stage response", err)
	}
	return &resp, nil
}

func (e *Engine) validate(ctx context.Context, goal string, chain *agent.ReasoningChain) (bool, error) {
	system := `Respond with a single JSON object: {"valid": boolean, "notes": string}.`
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", goal)
	fmt.Fprintf(&sb, "Conclusion: %s\n", chain.Conclusion)
	fmt.Fprintf(&sb, "Final confidence: %.2f\n", chain.FinalConfidence)
	sb.WriteString("Does the conclusion follow from the chain of reasoning and adequately address the goal?\n")

	text, err := e.Prompter.Prompt(ctx, system, sb.String())
	if err != nil {
		return false, err
	}
	var resp validationResponse
	if err := reasoning.DecodeJSON(text, &resp); err != nil {
		return false, agent.NewError(agent.ErrKindLLMParseError, "decode chain-of-thought validation response", err)
	}
	return resp.Valid, nil
}
