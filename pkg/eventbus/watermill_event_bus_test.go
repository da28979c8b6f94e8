package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowprobe/pkg/channels/gochannel"
	"github.com/dukex/flowprobe/pkg/eventbus"
	"github.com/dukex/flowprobe/pkg/events"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	pub, sub, err := gochannel.CreateChannel(logger)
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)

	received := make(chan *events.RunFinished, 1)

	require.NoError(t, bus.Handle(events.RunFinishedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.RunFinished)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "run-1", &events.RunFinished{
		BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, "p1"),
		RunID:     "run-1",
		Status:    models.RunStatusCompleted,
		Progress:  100,
	}))

	select {
	case got := <-received:
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, models.RunStatusCompleted, got.Status)
		assert.Equal(t, "p1", got.ProjectID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)

	received := make(chan string, 2)

	require.NoError(t, bus.Handle(events.RunQueuedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.RunQueued).RunID

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "run-1", &events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, ""),
		RunID:     "run-1",
	}))
	require.NoError(t, bus.Publish(ctx, "run-2", &events.RunQueued{
		BaseEvent: events.NewBaseEvent(events.RunQueuedEvent, ""),
		RunID:     "run-2",
	}))

	select {
	case id := <-received:
		assert.Equal(t, "run-2", id)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestNop(t *testing.T) {
	var publisher eventbus.EventPublisher = eventbus.Nop{}

	assert.NoError(t, publisher.Publish(context.Background(), "k", &events.RunQueued{}))
}
