package nyxcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKindString(t *testing.T) {
	cases := map[EventKind]string{
		EventMessageReceived:      "MessageReceived",
		EventMessageStatusChanged: "MessageStatusChanged",
		EventPeerConnected:        "PeerConnected",
		EventPeerDisconnected:     "PeerDisconnected",
		EventCallIncoming:         "CallIncoming",
		EventCallStateChanged:     "CallStateChanged",
		EventError:                "Error",
		EventKind(255):            "Unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestClientDispatchEventsDeliversToCurrentSink(t *testing.T) {
	c := &Client{events: make(chan Event, 4), eventDone: make(chan struct{})}
	go c.dispatchEvents()

	received := make(chan Event, 1)
	c.SetEventCallback(func(ev Event) { received <- ev })

	c.emit(Event{Kind: EventPeerConnected, PeerID: "peer-1"})

	select {
	case ev := <-received:
		assert.Equal(t, EventPeerConnected, ev.Kind)
		assert.Equal(t, "peer-1", ev.PeerID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}

	close(c.events)
	<-c.eventDone
}

func TestClientSetEventCallbackNilDisablesDispatch(t *testing.T) {
	c := &Client{events: make(chan Event, 4), eventDone: make(chan struct{})}
	go c.dispatchEvents()

	called := false
	c.SetEventCallback(func(ev Event) { called = true })
	c.SetEventCallback(nil)

	c.emit(Event{Kind: EventError})
	close(c.events)
	<-c.eventDone

	assert.False(t, called)
}

func TestDispatchToSinkRecoversFromPanic(t *testing.T) {
	require.NotPanics(t, func() {
		dispatchToSink(func(ev Event) { panic("boom") }, Event{Kind: EventError})
	})
}

func TestClientEmitDropsWhenChannelFull(t *testing.T) {
	c := &Client{events: make(chan Event, 1)}
	c.emit(Event{Kind: EventError})
	require.NotPanics(t, func() {
		c.emit(Event{Kind: EventError})
	})
	assert.Len(t, c.events, 1)
}
