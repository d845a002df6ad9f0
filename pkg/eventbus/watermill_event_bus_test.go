package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stageflow/pkg/channels/gochannel"
	"github.com/dukex/stageflow/pkg/eventbus"
	"github.com/dukex/stageflow/pkg/events"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func definition() *models.Definition {
	return &models.Definition{
		ID:            "def-1",
		GroupID:       "group-1",
		Version:       1,
		BasicInfo:     models.BasicInfo{Name: "Large transfer review"},
		ExecutionMode: models.ExecutionModeRigid,
		Stages:        []models.Stage{models.NewStage()},
	}
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.DefinitionPublished, 1)

	require.NoError(t, bus.Handle(events.DefinitionPublishedEvent, func(_ context.Context, event any) error {
		published, ok := event.(*events.DefinitionPublished)
		if !ok {
			return errors.New("unexpected event type")
		}

		received <- published

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "group-1", events.NewDefinitionPublished(definition(), "session-1")))

	select {
	case event := <-received:
		assert.Equal(t, "def-1", event.DefinitionID)
		assert.Equal(t, "session-1", event.SessionID)
		assert.Equal(t, "Large transfer review", event.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledEventsAreSkipped(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.EventType, 2)

	require.NoError(t, bus.Handle(events.DefinitionPublishedEvent, func(_ context.Context, event any) error {
		received <- events.DefinitionPublishedEvent

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "group-1", events.NewDefinitionDraftSaved(definition(), "")))
	require.NoError(t, bus.Publish(ctx, "group-1", events.NewDefinitionPublished(definition(), "")))

	select {
	case eventType := <-received:
		assert.Equal(t, events.DefinitionPublishedEvent, eventType)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	assert.Empty(t, received)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
