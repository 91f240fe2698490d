package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, h.Len())

	n := h.Publish(Event{Type: "changed", Label: "MQTT_BROKER_PORT", Value: "1884"})
	assert.Equal(t, 2, n)

	for _, s := range []*Subscriber{a, b} {
		ev := <-s.Events()
		assert.Equal(t, "MQTT_BROKER_PORT", ev.Label)
		assert.False(t, ev.At.IsZero())
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	s := h.Subscribe()
	require.NoError(t, h.Unsubscribe(s.ID))

	_, open := <-s.Events()
	assert.False(t, open)
	assert.Zero(t, h.Len())
}

func TestUnsubscribeNotFound(t *testing.T) {
	h := NewHub()
	assert.ErrorIs(t, h.Unsubscribe("nonexistent"), ErrNotFound)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub()
	s := h.Subscribe()
	for i := 0; i < defaultBuffer; i++ {
		require.Equal(t, 1, h.Publish(Event{Type: "changed"}))
	}
	assert.Equal(t, 0, h.Publish(Event{Type: "changed"}), "full buffer must not block")
	assert.Len(t, s.Events(), defaultBuffer)
}

func TestCloseRemovesAll(t *testing.T) {
	h := NewHub()
	s := h.Subscribe()
	h.Subscribe()
	h.Close()
	assert.Zero(t, h.Len())
	_, open := <-s.Events()
	assert.False(t, open)
}
