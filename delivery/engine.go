package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// Engine walks the three-tier delivery chain for each outbound frame and
// routes inbound acks back to waiting senders (spec.md §4.5).
type Engine struct {
	store *storage.Store
	acks  *AckTracker

	direct *DirectStrategy
	relay  *RelayStrategy
	storeFwd *StoreForwardStrategy
}

// NewEngine wires the three strategies into a single chain, attempted in
// order: direct, relay, store-and-forward. direct and relay, if non-nil,
// must share the same *AckTracker instance the caller passes as acks, so
// that Engine.Acks().Deliver wakes the strategy that is actually waiting.
func NewEngine(store *storage.Store, acks *AckTracker, direct *DirectStrategy, relay *RelayStrategy, storeFwd *StoreForwardStrategy) *Engine {
	if acks == nil {
		acks = NewAckTracker()
	}
	return &Engine{
		store:  store,
		acks:   acks,
		direct: direct,
		relay:  relay,
		storeFwd: storeFwd,
	}
}

// Acks exposes the shared ack tracker so the Network callback router can
// feed inbound ack(message_id) frames back in via Acks().Deliver.
func (e *Engine) Acks() *AckTracker { return e.acks }

func (e *Engine) chain() []Strategy {
	chain := make([]Strategy, 0, 3)
	if e.direct != nil {
		chain = append(chain, e.direct)
	}
	if e.relay != nil {
		chain = append(chain, e.relay)
	}
	if e.storeFwd != nil {
		chain = append(chain, e.storeFwd)
	}
	return chain
}

func ackTimeoutFor(path storage.DeliveryPath) time.Duration {
	switch path {
	case storage.PathP2P:
		return DirectAckTimeout
	case storage.PathRelay:
		return RelayAckTimeout
	default:
		return 0
	}
}

// Send attempts each strategy in order, retrying transient failures with
// exponential backoff (up to MaxAttempts) before escalating to the next
// tier. It returns once a strategy accepts the frame; for direct and
// relay that means ack was received, for store-and-forward it means the
// service accepted the queued frame. The message's status is updated in
// Storage as the outcome becomes known; its delivery path is not written.
func (e *Engine) Send(ctx context.Context, frame Frame) error {
	var lastErr error

	for _, strategy := range e.chain() {
		ok, err := e.attemptStrategy(ctx, strategy, frame)
		if ok {
			return nil
		}
		lastErr = err
		logrus.WithFields(logrus.Fields{
			"function":   "Engine.Send",
			"message_id": frame.MessageID,
			"strategy":   strategy.Path(),
			"error":      err,
		}).Warn("delivery strategy exhausted, escalating")
	}

	if err := e.store.UpdateMessageStatus(frame.MessageID, storage.StatusFailed); err != nil {
		logrus.WithError(err).Warn("failed to record terminal delivery failure")
	}
	if lastErr == nil {
		lastErr = ErrAllStrategiesFailed
	}
	return errors.Join(ErrAllStrategiesFailed, lastErr)
}

// attemptStrategy runs the retry loop for a single tier and reports
// whether it ultimately succeeded.
func (e *Engine) attemptStrategy(ctx context.Context, strategy Strategy, frame Frame) (bool, error) {
	var lastErr error

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err := strategy.Send(ctx, frame)
		if err == nil {
			if err := e.onStrategyAccepted(ctx, strategy, frame); err != nil {
				lastErr = err
				continue
			}
			return true, nil
		}

		if errors.Is(err, ErrPermanent) {
			return false, err
		}
		lastErr = err

		if attempt < MaxAttempts {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
	}
	return false, lastErr
}

// onStrategyAccepted marks the message sent and, for strategies that
// expect a synchronous ack, blocks until it arrives or the tier's
// deadline elapses (escalating to the next strategy on timeout).
func (e *Engine) onStrategyAccepted(ctx context.Context, strategy Strategy, frame Frame) error {
	// Control frames (call signaling, group invites, sync steps) have no
	// stored row; ErrNotFound for them is not a delivery failure.
	if err := e.store.UpdateMessageStatus(frame.MessageID, storage.StatusSent); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	waiter, needsAck := strategy.(ackWaiter)
	if !needsAck {
		// Store-and-forward: no synchronous ack, accepted means done for
		// this Send call. Delivery confirmation arrives later through a
		// pulled ack frame processed the same way as any inbound ack.
		return nil
	}

	deadline := ackTimeoutFor(strategy.Path())
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if err := waiter.WaitAck(waitCtx, frame.MessageID); err != nil {
		e.acks.Cancel(frame.MessageID)
		return err
	}

	if err := e.store.UpdateMessageStatus(frame.MessageID, storage.StatusDelivered); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// HandleAck processes an inbound ack(message_id) frame, whichever tier it
// arrived on (spec.md §4.5's ack protocol is path-agnostic).
func (e *Engine) HandleAck(messageID string) {
	e.acks.Deliver(messageID)
}

// HandleReadReceipt processes a read-receipt notification, the Non-goal-
// adjacent feature supplemented from original_source/ per SPEC_FULL.md
// ("read receipts" extension of the core ack protocol).
func (e *Engine) HandleReadReceipt(messageID string) error {
	return e.store.UpdateMessageStatus(messageID, storage.StatusRead)
}

// PullOffline queries the store service for queued messages addressed to
// localPeerID and returns them for normal inbound processing, per spec.md
// §4.5's "on startup and on each reconnect" requirement. The caller
// (Command Bus) is responsible for running each returned frame through
// session.Manager.Decrypt and Storage.InsertMessage exactly as it would a
// freshly arrived direct frame.
func (e *Engine) PullOffline(ctx context.Context, localPeerID string) ([]Frame, error) {
	if e.storeFwd == nil {
		return nil, nil
	}
	return e.storeFwd.Pull(ctx, localPeerID)
}
