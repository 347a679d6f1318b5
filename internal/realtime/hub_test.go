package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-reservation/internal/queue"
)

func TestHubRoutesByVenue(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe(1)
	b := h.Subscribe(2)
	defer a.Close()
	defer b.Close()

	h.Notify(context.Background(), queue.ReservationEvent{Type: queue.EventCreated, ReservationID: 9, VenueID: 1})

	require.Len(t, a.C, 1)
	var ev queue.ReservationEvent
	require.NoError(t, json.Unmarshal(<-a.C, &ev))
	assert.Equal(t, uint64(9), ev.ReservationID)
	assert.Len(t, b.C, 0)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(2)
	s := h.Subscribe(1)
	for i := 0; i < 5; i++ {
		h.Broadcast(1, []byte("x"))
	}
	assert.Len(t, s.C, 2)
}

func TestHubCloseAndUnsubscribe(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe(1)
	assert.Equal(t, 1, h.Subscribers(1))
	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers(1))
	_, open := <-s.C
	assert.False(t, open)

	other := h.Subscribe(3)
	h.Close()
	_, open = <-other.C
	assert.False(t, open)

	late := h.Subscribe(3)
	_, open = <-late.C
	assert.False(t, open)
	late.Close()
}
