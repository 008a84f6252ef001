package delivery

import (
	"context"
	"fmt"
	"sync"
)

// AckTracker correlates inbound ack(message_id) frames (delivered by
// Network's callback router) with goroutines blocked in a strategy's
// WaitAck, the same one-shot-channel-per-pending-call shape the teacher
// uses in net/conn.go for matching replies to requests. Exported so a
// single instance can be shared between the strategies and the Engine
// that owns the Network callback feeding it inbound acks.
type AckTracker struct {
	mu      sync.Mutex
	pending map[string]chan struct{}
}

// NewAckTracker returns an empty tracker, shared by the Engine and every
// strategy that waits on synchronous acks (direct, relay).
func NewAckTracker() *AckTracker {
	return &AckTracker{pending: make(map[string]chan struct{})}
}

// Await registers messageID and blocks until Deliver is called for it or
// ctx is done.
func (a *AckTracker) Await(ctx context.Context, messageID string) error {
	a.mu.Lock()
	ch, exists := a.pending[messageID]
	if !exists {
		ch = make(chan struct{})
		a.pending[messageID] = ch
	}
	a.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w for message %s", ErrAckTimeout, messageID)
	}
}

// Deliver signals any goroutine awaiting messageID's ack and forgets it.
func (a *AckTracker) Deliver(messageID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, exists := a.pending[messageID]
	if !exists {
		return
	}
	close(ch)
	delete(a.pending, messageID)
}

// Cancel forgets a pending wait without signaling it, used when the
// Engine gives up on a message and moves to the next strategy.
func (a *AckTracker) Cancel(messageID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, messageID)
}
