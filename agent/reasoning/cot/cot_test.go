package cot_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/reasoning/cot"
)

// scriptedPrompter returns one canned response per call, in order.
type scriptedPrompter struct {
	responses []string
	pos       int
}

func (p *scriptedPrompter) Prompt(ctx context.Context, system, user string) (string, error) {
	r := p.responses[p.pos]
	p.pos++
	return r, nil
}

func TestRunFourStagePipelineAveragesConfidence(t *testing.T) {
	p := &scriptedPrompter{responses: []string{
		`{"reasoning":"a1","confidence":0.5,"insights":["i1"]}`,
		`{"reasoning":"p1","confidence":0.7,"insights":[]}`,
		`{"reasoning":"s1","confidence":0.9,"insights":[]}`,
		`{"reasoning":"e1","confidence":0.9,"insights":[],"conclusion":"do the thing"}`,
	}}
	e := cot.New(p, cot.Config{})

	res, err := e.Run(context.Background(), "accomplish the goal")
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	require.Len(t, res.Chain.Steps, 4)
	require.Equal(t, agent.StepAnalysis, res.Chain.Steps[0].StepType)
	require.Equal(t, agent.StepPlanning, res.Chain.Steps[1].StepType)
	require.Equal(t, agent.StepDecision, res.Chain.Steps[2].StepType)
	require.Equal(t, agent.StepEvaluation, res.Chain.Steps[3].StepType)
	require.Equal(t, "do the thing", res.Chain.Conclusion)
	require.InDelta(t, 0.75, res.Chain.FinalConfidence, 1e-9)
	require.NotNil(t, res.Chain.CompletedAt)
}

func TestRunHonorsMaxSteps(t *testing.T) {
	p := &scriptedPrompter{responses: []string{
		`{"reasoning":"a1","confidence":0.5,"insights":[]}`,
	}}
	e := cot.New(p, cot.Config{MaxSteps: 1})

	res, err := e.Run(context.Background(), "goal")
	require.NoError(t, err)
	require.Len(t, res.Chain.Steps, 1)
	require.Empty(t, res.Chain.Conclusion)
}

func TestRunFailsBelowMinConfidenceWhenValidationFails(t *testing.T) {
	p := &scriptedPrompter{responses: []string{
		`{"reasoning":"a1","confidence":0.1,"insights":[]}`,
		`{"reasoning":"p1","confidence":0.1,"insights":[]}`,
		`{"reasoning":"s1","confidence":0.1,"insights":[]}`,
		`{"reasoning":"e1","confidence":0.1,"insights":[],"conclusion":"weak"}`,
		`{"valid":false,"notes":"insufficient"}`,
	}}
	e := cot.New(p, cot.Config{EnableValidation: true, MinConfidence: 0.5})

	res, err := e.Run(context.Background(), "goal")
	require.NoError(t, err)
	require.False(t, res.Succeeded)
}

func TestRunPassesValidationAboveMinConfidence(t *testing.T) {
	p := &scriptedPrompter{responses: []string{
		`{"reasoning":"a1","confidence":0.9,"insights":[]}`,
		`{"reasoning":"p1","confidence":0.9,"insights":[]}`,
		`{"reasoning":"s1","confidence":0.9,"insights":[]}`,
		`{"reasoning":"e1","confidence":0.9,"insights":[],"conclusion":"strong"}`,
		`{"valid":false,"notes":"picky validator"}`,
	}}
	e := cot.New(p, cot.Config{EnableValidation: true, MinConfidence: 0.5})

	res, err := e.Run(context.Background(), "goal")
	require.NoError(t, err)
	require.True(t, res.Succeeded, "confidence above MinConfidence should still succeed even if validation itself says invalid")
}
