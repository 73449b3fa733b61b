package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
)

func TestBus_OrderAndIsolation(t *testing.T) {
	bus := events.NewBus(logging.Discard())

	var got []string

	bus.Subscribe(func(e events.Event) { got = append(got, "first:"+string(e.Type)) })
	bus.Subscribe(func(events.Event) { panic("listener bug") })
	bus.Subscribe(func(e events.Event) { got = append(got, "third:"+string(e.Type)) })

	assert.NotPanics(t, func() {
		bus.Publish(events.Event{Type: events.SyncStarted})
	})

	assert.Equal(t, []string{"first:sync_started", "third:sync_started"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := events.NewBus(logging.Discard())

	var count int

	unsubscribe := bus.Subscribe(func(events.Event) { count++ })

	bus.Publish(events.Event{Type: events.OperationQueued})
	unsubscribe()
	unsubscribe()
	bus.Publish(events.Event{Type: events.OperationQueued})

	assert.Equal(t, 1, count)
}

func TestBus_StampsTime(t *testing.T) {
	bus := events.NewBus(logging.Discard())

	var got events.Event

	bus.Subscribe(func(e events.Event) { got = e })
	bus.Publish(events.Event{Type: events.SyncSkipped, Reason: "offline"})

	assert.False(t, got.At.IsZero())
	assert.Equal(t, "offline", got.Reason)
}

func TestEvent_RetryDelayInMilliseconds(t *testing.T) {
	in := events.Event{Type: events.OperationRetry, OperationID: "op-1", RetryCount: 2, RetryDelay: 10 * time.Second}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.InDelta(t, 10000, raw["retryDelay"], 0)
	assert.Equal(t, "operation_retry", raw["type"])

	var out events.Event
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, 10*time.Second, out.RetryDelay)
	assert.Equal(t, "op-1", out.OperationID)
	assert.Equal(t, 2, out.RetryCount)

	b, err = json.Marshal(events.Event{Type: events.SyncStarted})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "retryDelay")
}
