package selector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/reasoning/cot"
	"github.com/loopforge/agentturn/agent/reasoning/selector"
	"github.com/loopforge/agentturn/agent/reasoning/tot"
)

type scriptedPrompter struct {
	responses []string
	pos       int
}

func (p *scriptedPrompter) Prompt(ctx context.Context, system, user string) (string, error) {
	r := p.responses[p.pos]
	p.pos++
	return r, nil
}

func cotResponses(conclusion string) []string {
	return []string{
		`{"reasoning":"a","confidence":0.8,"insights":[]}`,
		`{"reasoning":"p","confidence":0.8,"insights":[]}`,
		`{"reasoning":"s","confidence":0.8,"insights":[]}`,
		`{"reasoning":"e","confidence":0.8,"insights":[],"conclusion":"` + conclusion + `"}`,
	}
}

func totResponses(conclusion string) []string {
	return []string{
		`{"thought":"root"}`,
		`{"score":0.9,"leaf":true}`,
		`{"conclusion":"` + conclusion + `"}`,
	}
}

func TestReasonNoneReturnsEmpty(t *testing.T) {
	s := selector.New(selector.TypeNone, nil, nil)
	conclusion, chain, tree, err := s.Reason(context.Background(), "goal")
	require.NoError(t, err)
	require.Empty(t, conclusion)
	require.Nil(t, chain)
	require.Nil(t, tree)
}

func TestReasonChainOfThoughtReturnsConclusion(t *testing.T) {
	cotEngine := cot.New(&scriptedPrompter{responses: cotResponses("do the thing")}, cot.Config{})
	s := selector.New(selector.TypeChainOfThought, cotEngine, nil)

	conclusion, chain, tree, err := s.Reason(context.Background(), "goal")
	require.NoError(t, err)
	require.Equal(t, "do the thing", conclusion)
	require.NotNil(t, chain)
	require.Nil(t, tree)
}

func TestReasonTreeOfThoughtsReturnsConclusion(t *testing.T) {
	totEngine := tot.New(&scriptedPrompter{responses: totResponses("branching answer")}, tot.Config{MaxDepth: 1, MaxNodes: 5})
	s := selector.New(selector.TypeTreeOfThoughts, nil, totEngine)

	conclusion, chain, tree, err := s.Reason(context.Background(), "goal")
	require.NoError(t, err)
	require.Equal(t, "branching answer", conclusion)
	require.Nil(t, chain)
	require.NotNil(t, tree)
}

func TestReasonHybridSeedsTreeOfThoughtsWithChainConclusion(t *testing.T) {
	cotEngine := cot.New(&scriptedPrompter{responses: cotResponses("linear conclusion")}, cot.Config{})
	var seenGoal string
	totEngine := tot.New(&recordingPrompter{
		scriptedPrompter: scriptedPrompter{responses: totResponses("branching answer")},
		onFirstPrompt:    func(user string) { seenGoal = user },
	}, tot.Config{MaxDepth: 1, MaxNodes: 5})

	s := selector.New(selector.TypeHybrid, cotEngine, totEngine)
	conclusion, chain, tree, err := s.Reason(context.Background(), "original goal")
	require.NoError(t, err)
	require.Equal(t, "branching answer", conclusion)
	require.NotNil(t, chain)
	require.NotNil(t, tree)
	require.Contains(t, seenGoal, "original goal")
	require.Contains(t, seenGoal, "linear conclusion")
}

func TestReasonUnknownTypeErrors(t *testing.T) {
	s := selector.New(selector.Type("bogus"), nil, nil)
	_, _, _, err := s.Reason(context.Background(), "goal")
	require.Error(t, err)
}

type recordingPrompter struct {
	scriptedPrompter
	onFirstPrompt func(user string)
	called        bool
}

func (p *recordingPrompter) Prompt(ctx context.Context, system, user string) (string, error) {
	if !p.called {
		p.called = true
		if p.onFirstPrompt != nil {
			p.onFirstPrompt(user)
		}
	}
	return p.scriptedPrompter.Prompt(ctx, system, user)
}
