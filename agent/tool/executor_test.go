package tool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/schema"
	"github.com/loopforge/agentturn/agent/tool"
)

// fakeTool is a minimal tool.Descriptor for exercising the executor's
// classification paths without a real integration.
type fakeTool struct {
	name     string
	schema   []byte
	invoke   func(ctx context.Context, params map[string]any) (any, error)
	dedupe   *bool
	ttlNanos int64
	hasTTL   bool
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "fake tool for tests" }
func (f *fakeTool) ParamsSchema() []byte    { return f.schema }
func (f *fakeTool) Invoke(ctx context.Context, params map[string]any) (any, error) {
	return f.invoke(ctx, params)
}
func (f *fakeTool) AllowDedupe() bool {
	if f.dedupe == nil {
		return true
	}
	return *f.dedupe
}
func (f *fakeTool) CustomTTL() (int64, bool) { return f.ttlNanos, f.hasTTL }

func newRegistry(tools ...tool.Descriptor) tool.Registry {
	r := tool.NewMapRegistry()
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func TestExecutorSuccess(t *testing.T) {
	add := &fakeTool{name: "add", invoke: func(ctx context.Context, params map[string]any) (any, error) {
		return 5, nil
	}}
	exec := tool.NewExecutor(newRegistry(add), nil, time.Second)

	res, err := exec.Execute(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 5, res.Output)
	require.Empty(t, res.Error)
}

func TestExecutorNotFound(t *testing.T) {
	exec := tool.NewExecutor(newRegistry(), nil, time.Second)

	res, err := exec.Execute(context.Background(), "missing", map[string]any{})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, map[string]any{"type": "not_found"}, res.Output)
}

func TestExecutorValidationError(t *testing.T) {
	validated := &fakeTool{
		name:   "validated",
		schema: []byte(`{"type":"object","properties":{"x":{"type":"integer","minimum":10}},"required":["x"]}`),
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			t.Fatal("Invoke must not be called when validation fails")
			return nil, nil
		},
	}
	intro := schema.NewIntrospector()
	require.NoError(t, intro.Register("validated", validated.schema))
	exec := tool.NewExecutor(newRegistry(validated), intro, time.Second)

	res, err := exec.Execute(context.Background(), "validated", map[string]any{})
	require.NoError(t, err)
	require.False(t, res.Success)
	out, ok := res.Output.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "validation_error", out["type"])
	require.NotEmpty(t, out["missing"])
}

func TestExecutorTimeout(t *testing.T) {
	slow := &fakeTool{name: "slow", invoke: func(ctx context.Context, params map[string]any) (any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "too slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	exec := tool.NewExecutor(newRegistry(slow), nil, 20*time.Millisecond)

	start := time.Now()
	res, err := exec.Execute(context.Background(), "slow", map[string]any{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, map[string]any{"type": "timeout"}, res.Output)
	require.Less(t, elapsed, 200*time.Millisecond)
}

func TestExecutorToolError(t *testing.T) {
	boom := &fakeTool{name: "boom", invoke: func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("kaboom")
	}}
	exec := tool.NewExecutor(newRegistry(boom), nil, time.Second)

	res, err := exec.Execute(context.Background(), "boom", map[string]any{})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, map[string]any{"type": "tool_error"}, res.Output)
	require.Equal(t, "kaboom", res.Error)
}

func TestExecutorCancelledBeforeStart(t *testing.T) {
	called := false
	noop := &fakeTool{name: "noop", invoke: func(ctx context.Context, params map[string]any) (any, error) {
		called = true
		return nil, nil
	}}
	exec := tool.NewExecutor(newRegistry(noop), nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := exec.Execute(ctx, "noop", map[string]any{})
	require.Error(t, err)
	require.Nil(t, res)
	require.False(t, called)
}

func TestExecutorCancelledDuringInvoke(t *testing.T) {
	started := make(chan struct{})
	slow := &fakeTool{name: "slow", invoke: func(ctx context.Context, params map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	exec := tool.NewExecutor(newRegistry(slow), nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := exec.Execute(ctx, "slow", map[string]any{})
		errCh <- err
	}()
	<-started
	cancel()

	err := <-errCh
	require.Error(t, err)
}

func TestExecutorEmitsStartedAndCompleted(t *testing.T) {
	add := &fakeTool{name: "add", invoke: func(ctx context.Context, params map[string]any) (any, error) {
		return 1, nil
	}}
	exec := tool.NewExecutor(newRegistry(add), nil, time.Second)

	var startedCalled, completedCalled bool
	exec.OnStarted = func(ctx context.Context, name string, params map[string]any) {
		startedCalled = true
		require.Equal(t, "add", name)
	}
	exec.OnCompleted = func(ctx context.Context, result *agent.ToolExecutionResult, outcome tool.Outcome) {
		completedCalled = true
		require.Equal(t, tool.OutcomeSuccess, outcome)
	}

	_, err := exec.Execute(context.Background(), "add", map[string]any{})
	require.NoError(t, err)
	require.True(t, startedCalled)
	require.True(t, completedCalled)
}
