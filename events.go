package nyxcore

import (
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// EventKind tags the variant carried by an Event, one member per callback
// named in spec.md §4.9.
type EventKind uint8

const (
	EventMessageReceived EventKind = iota
	EventMessageStatusChanged
	EventPeerConnected
	EventPeerDisconnected
	EventCallIncoming
	EventCallStateChanged
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMessageReceived:
		return "MessageReceived"
	case EventMessageStatusChanged:
		return "MessageStatusChanged"
	case EventPeerConnected:
		return "PeerConnected"
	case EventPeerDisconnected:
		return "PeerDisconnected"
	case EventCallIncoming:
		return "CallIncoming"
	case EventCallStateChanged:
		return "CallStateChanged"
	case EventError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Event is the single tagged variant delivered to a host's event sink
// (spec.md §4.9). Only the fields for Kind are populated (call and error
// events carry PeerID alongside their own field); the rest are zero.
type Event struct {
	Kind EventKind

	// EventMessageReceived / EventMessageStatusChanged
	Message *storage.Message

	// EventPeerConnected / EventPeerDisconnected
	PeerID string

	// EventCallIncoming / EventCallStateChanged
	CallID    string
	CallState CallState

	// EventError
	Err error
}

// EventSink receives events from the dedicated dispatch goroutine started
// by New. Implementations must not block, per spec.md §4.9.
type EventSink func(Event)

// SetEventCallback installs sink as the receiver of all future events,
// replacing any previously installed sink. A nil sink silently drops
// events, the same no-op-until-configured behavior as toxcore.go's
// callback fields before a host registers one.
func (c *Client) SetEventCallback(sink EventSink) {
	if sink == nil {
		c.eventSink.Store(nil)
		return
	}
	c.eventSink.Store(&sink)
}

// emit queues ev for dispatch, dropping it if the buffer is full rather
// than blocking the caller (usually the inbound-frame handler or a
// Command Bus operation).
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

// dispatchEvents is the dedicated goroutine spec.md §4.9 requires so a
// slow or misbehaving host callback can never stall Network or the
// Command Bus, generalizing the teacher's callback-dispatch goroutine
// pattern from net/callback_router.go into a single fan-in channel
// instead of one callback per kind.
func (c *Client) dispatchEvents() {
	defer close(c.eventDone)
	for ev := range c.events {
		sinkPtr := c.eventSink.Load()
		if sinkPtr == nil {
			continue
		}
		dispatchToSink(*sinkPtr, ev)
	}
}

// dispatchToSink invokes sink and recovers a panicking host callback so
// it cannot take down the dispatch goroutine, mirroring the Command
// Bus's own panic-recovery wrapper around user-supplied exec functions.
func dispatchToSink(sink EventSink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "dispatchToSink",
				"kind":     ev.Kind.String(),
				"panic":    r,
			}).Error("recovered panic in host event callback")
		}
	}()
	sink(ev)
}
