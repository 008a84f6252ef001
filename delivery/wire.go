package delivery

import (
	"encoding/json"
	"fmt"
	"time"
)

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// wireFrame is the self-describing on-wire representation of spec.md
// §4.4's frame: {message_id, sender, recipient, ciphertext, signature,
// timestamp}, replacing the teacher's {packet_type, payload} framing
// (transport/packet.go) now that routing happens by peer ID rather than
// a fixed packet-type byte.
type wireFrame struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Cipher    []byte `json:"ciphertext"`
	Signature []byte `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

func encodeFrame(f Frame) ([]byte, error) {
	wf := wireFrame{
		MessageID: f.MessageID,
		Sender:    f.SenderPeerID,
		Recipient: f.RecipientPeerID,
		Cipher:    f.Ciphertext,
		Signature: f.Signature,
		Timestamp: f.Timestamp.Unix(),
	}
	out, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("delivery: encode frame: %w", err)
	}
	return out, nil
}

func decodeFrame(wire []byte) (Frame, error) {
	return DecodeFrame(wire)
}

// DecodeFrame parses a wire-encoded frame, exported so the Network
// adapter's inbound callback (outside this package) can recover the
// sender/recipient/ciphertext before handing off to the Crypto Session.
func DecodeFrame(wire []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(wire, &wf); err != nil {
		return Frame{}, fmt.Errorf("delivery: decode frame: %w", err)
	}
	return Frame{
		MessageID:       wf.MessageID,
		SenderPeerID:    wf.Sender,
		RecipientPeerID: wf.Recipient,
		Ciphertext:      wf.Cipher,
		Signature:       wf.Signature,
		Timestamp:       unixTime(wf.Timestamp),
	}, nil
}
