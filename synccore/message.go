package synccore

import "encoding/json"

// MessageType enumerates the sync protocol's message kinds, the same
// state-hash-then-state shape acorde's internal/sync package uses to
// avoid exchanging full state on every round.
type MessageType int

const (
	MsgStateHash MessageType = iota + 1
	MsgStateRequest
	MsgState
)

// Message is one sync protocol round-trip step, carried as the plaintext
// payload of an ordinary pairwise-encrypted message between two of the
// same user's devices (the Delivery Engine and Crypto Session treat it
// identically to a chat message; only the Command Bus routes it here
// instead of to Storage).
type Message struct {
	Type      MessageType `json:"type"`
	StateHash []byte      `json:"state_hash,omitempty"`
	State     []byte      `json:"state,omitempty"` // Encode() output of a State
}

// Encode serializes a Message for transmission.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a Message from its wire form.
func DecodeMessage(blob []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(blob, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}
