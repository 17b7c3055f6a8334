package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopforge/agentturn/agent/events"
)

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := events.NewBus()
	var order []int
	b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		order = append(order, 1)
		return nil
	}))
	b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		order = append(order, 2)
		return nil
	}))

	require.NoError(t, b.Publish(context.Background(), events.NewRunStarted("a1", "goal")))
	require.Equal(t, []int{1, 2}, order)
}

// TestSubscriberErrorIsolation is the literal regression case for spec §8
// property 12: a faulting subscriber does not prevent delivery to the rest.
func TestSubscriberErrorIsolation(t *testing.T) {
	b := events.NewBus()
	delivered := false

	b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		return errors.New("boom")
	}))
	b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		delivered = true
		return nil
	}))

	err := b.Publish(context.Background(), events.NewRunStarted("a1", "goal"))
	require.Error(t, err)
	require.True(t, delivered)
}

func TestSubscriberPanicIsolation(t *testing.T) {
	b := events.NewBus()
	delivered := false

	b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		panic("unexpected")
	}))
	b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		delivered = true
		return nil
	}))

	require.NotPanics(t, func() {
		_ = b.Publish(context.Background(), events.NewRunStarted("a1", "goal"))
	})
	require.True(t, delivered)
}

func TestCloseStopsDelivery(t *testing.T) {
	b := events.NewBus()
	calls := 0
	sub := b.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, b.Publish(context.Background(), events.NewRunStarted("a1", "goal")))
	sub.Close()
	sub.Close() // idempotent
	require.NoError(t, b.Publish(context.Background(), events.NewRunStarted("a1", "goal")))

	require.Equal(t, 1, calls)
}

func TestEventKindAndAgentID(t *testing.T) {
	evt := events.NewToolCallCompleted("a1", 2, "add", "success", true, 0)
	require.Equal(t, events.ToolCallCompleted, evt.Kind())
	require.Equal(t, "a1", evt.AgentID())
}
