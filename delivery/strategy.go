package delivery

import (
	"context"

	"github.com/nyxtalk/nyxcore/storage"
)

// Strategy is one tier of the delivery chain. Send hands the frame to the
// underlying transport; it does not itself wait for an acknowledgement —
// ack waiting is the Engine's job, since the ack timeout differs per tier
// (spec.md §4.5: T_direct=3s, T_relay=5s) and store-and-forward has no
// synchronous ack at all.
type Strategy interface {
	Path() storage.DeliveryPath
	Send(ctx context.Context, frame Frame) error
}

// ackWaiter is satisfied by strategies whose tier expects a synchronous
// application-level acknowledgement (direct and relay, not store).
type ackWaiter interface {
	WaitAck(ctx context.Context, messageID string) error
}
