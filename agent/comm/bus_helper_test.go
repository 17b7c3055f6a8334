package comm_test

import (
	"context"

	"github.com/loopforge/agentturn/agent/events"
)

// recordingBus is a minimal events.Bus that just records the Kind of every
// published event, used to assert the Started/Completed pairing guarantee
// without pulling in the full in-memory bus's subscriber fan-out.
type recordingBus struct {
	kinds []string
}

func newRecordingBus() *recordingBus { return &recordingBus{} }

func (b *recordingBus) Publish(ctx context.Context, evt events.Event) error {
	b.kinds = append(b.kinds, string(evt.Kind()))
	return nil
}

func (b *recordingBus) Register(sub events.Subscriber) events.Subscription {
	return noopSubscription{}
}

type noopSubscription struct{}

func (noopSubscription) Close() {}
