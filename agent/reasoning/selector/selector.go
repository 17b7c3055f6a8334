// Package selector wires the Chain-of-Thought and Tree-of-Thoughts engines
// into the single orchestrator.Reasoner seam the turn engine consults once
// at the start of a fresh run (spec §4.9).
package selector

import (
	"context"
	"fmt"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/reasoning/cot"
	"github.com/loopforge/agentturn/agent/reasoning/tot"
)

// Type selects which reasoning engine(s) the orchestrator consults before
// its first turn (spec §6: reasoning_type).
type Type string

const (
	TypeNone           Type = "none"
	TypeChainOfThought Type = "chain_of_thought"
	TypeTreeOfThoughts Type = "tree_of_thoughts"
	TypeHybrid         Type = "hybrid"
)

// EngineSelector implements orchestrator.Reasoner, dispatching to the
// configured engine(s). The specification names "hybrid" as a reasoning_type
// value without defining its semantics; this implementation runs
// Chain-of-Thought first, seeds its conclusion into the opening prompt of
// the Tree-of-Thoughts root — giving ToT's branching search a head start
// from CoT's linear pass rather than exploring from the bare goal (see
// DESIGN.md). It returns the ToT conclusion (or the CoT one when ToT's is
// empty) together with both the chain and the tree; it computes no combined
// confidence score.
type EngineSelector struct {
	Type Type
	CoT  *cot.Engine
	ToT  *tot.Engine
}

// New constructs a Reasoner for typ. cotEngine and totEngine may be nil for
// a Type that never consults them (e.g. TypeNone, or TypeChainOfThought with
// a nil totEngine).
func New(typ Type, cotEngine *cot.Engine, totEngine *tot.Engine) *EngineSelector {
	return &EngineSelector{Type: typ, CoT: cotEngine, ToT: totEngine}
}

// Reason implements orchestrator.Reasoner.
func (s *EngineSelector) Reason(ctx context.Context, goal string) (string, *agent.ReasoningChain, *agent.ReasoningTree, error) {
	switch s.Type {
	case TypeNone, "":
		return "", nil, nil, nil

	case TypeChainOfThought:
		res, err := s.CoT.Run(ctx, goal)
		if err != nil {
			return "", nil, nil, err
		}
		if !res.Succeeded {
			return "", res.Chain, nil, nil
		}
		return res.Chain.Conclusion, res.Chain, nil, nil

	case TypeTreeOfThoughts:
		res, err := s.ToT.Run(ctx, goal)
		if err != nil {
			return "", nil, nil, err
		}
		return res.Conclusion, nil, res.Tree, nil

	case TypeHybrid:
		return s.reasonHybrid(ctx, goal)

	default:
		return "", nil, nil, fmt.Errorf("reasoning selector: unknown reasoning type %q", s.Type)
	}
}

func (s *EngineSelector) reasonHybrid(ctx context.Context, goal string) (string, *agent.ReasoningChain, *agent.ReasoningTree, error) {
	cotRes, err := s.CoT.Run(ctx, goal)
	if err != nil {
		return "", nil, nil, err
	}

	totGoal := goal
	if cotRes.Succeeded && cotRes.Chain.Conclusion != "" {
		totGoal = fmt.Sprintf("%s\n\nA prior analysis concluded: %s\nExplore alternative or deeper lines of thought from here.", goal, cotRes.Chain.Conclusion)
	}
	totRes, err := s.ToT.Run(ctx, totGoal)
	if err != nil {
		return "", cotRes.Chain, nil, err
	}

	conclusion := totRes.Conclusion
	if conclusion == "" {
		conclusion = cotRes.Chain.Conclusion
	}
	return conclusion, cotRes.Chain, totRes.Tree, nil
}
