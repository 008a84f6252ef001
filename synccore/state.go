package synccore

import (
	"crypto/sha256"
	"encoding/json"
	"sort"
	"time"
)

// State is the full piece of shared state synced between a user's linked
// devices: the contact list plus per-conversation read marks and drafts.
// It plays the role acorde's crdt.ReplicaState plays for its StateProvider
// interface, specialized to synccore's three concrete fields instead of a
// generic replica document.
type State struct {
	Contacts  *LWWSet
	ReadMarks map[string]*LWWRegister // conversation ID -> last-read message ID
	Drafts    map[string]*LWWRegister // conversation ID -> draft text
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Contacts:  NewLWWSet(),
		ReadMarks: make(map[string]*LWWRegister),
		Drafts:    make(map[string]*LWWRegister),
	}
}

// readMark / draft accessors lazily create the per-conversation register,
// mirroring how callers treat an unset conversation as "no draft yet"
// rather than an error.

func (s *State) readMark(conversationID string) *LWWRegister {
	r, ok := s.ReadMarks[conversationID]
	if !ok {
		r = NewLWWRegister()
		s.ReadMarks[conversationID] = r
	}
	return r
}

func (s *State) draft(conversationID string) *LWWRegister {
	d, ok := s.Drafts[conversationID]
	if !ok {
		d = NewLWWRegister()
		s.Drafts[conversationID] = d
	}
	return d
}

// SetReadMark records that messageID is the last message read in
// conversationID, as of (at, deviceID).
func (s *State) SetReadMark(conversationID, messageID string, at time.Time, deviceID string) {
	s.readMark(conversationID).Set(messageID, at, deviceID)
}

// SetDraft records draft text for conversationID, as of (at, deviceID).
func (s *State) SetDraft(conversationID, text string, at time.Time, deviceID string) {
	s.draft(conversationID).Set(text, at, deviceID)
}

// Merge folds other into s field by field, the same way acorde's
// StateProvider.ApplyState folds a peer's full state into the local
// engine.
func (s *State) Merge(other *State) {
	s.Contacts.Merge(other.Contacts)
	for conv, reg := range other.ReadMarks {
		s.readMark(conv).Merge(reg)
	}
	for conv, reg := range other.Drafts {
		s.draft(conv).Merge(reg)
	}
}

// wireEntry/wireState are the JSON-serializable forms of LWWSet/State,
// since the CRDT types carry unexported fields. Shaping this as its own
// wire type (rather than exporting lwwEntry) keeps the merge-safety
// invariants (apply() is the only mutator) enforced at compile time.
type wireEntry struct {
	Value     string    `json:"value"`
	Removed   bool      `json:"removed"`
	UpdatedAt time.Time `json:"updated_at"`
	DeviceID  string    `json:"device_id"`
}

type wireRegister struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	DeviceID  string    `json:"device_id"`
	Set       bool      `json:"set"`
}

type wireState struct {
	Contacts  []wireEntry             `json:"contacts"`
	ReadMarks map[string]wireRegister `json:"read_marks"`
	Drafts    map[string]wireRegister `json:"drafts"`
}

// Encode serializes the state for transmission over the Delivery Engine,
// following acorde's Message.State field ("JSON-encoded ReplicaState").
func (s *State) Encode() ([]byte, error) {
	w := wireState{
		ReadMarks: make(map[string]wireRegister, len(s.ReadMarks)),
		Drafts:    make(map[string]wireRegister, len(s.Drafts)),
	}
	for _, e := range s.Contacts.entries {
		w.Contacts = append(w.Contacts, wireEntry(e))
	}
	for conv, r := range s.ReadMarks {
		w.ReadMarks[conv] = wireRegister{Value: r.value, UpdatedAt: r.updatedAt, DeviceID: r.deviceID, Set: r.set}
	}
	for conv, d := range s.Drafts {
		w.Drafts[conv] = wireRegister{Value: d.value, UpdatedAt: d.updatedAt, DeviceID: d.deviceID, Set: d.set}
	}
	return json.Marshal(w)
}

// DecodeState reconstructs a State from Encode's output.
func DecodeState(blob []byte) (*State, error) {
	var w wireState
	if err := json.Unmarshal(blob, &w); err != nil {
		return nil, err
	}

	s := NewState()
	for _, e := range w.Contacts {
		s.Contacts.entries[e.Value] = lwwEntry(e)
	}
	for conv, r := range w.ReadMarks {
		s.ReadMarks[conv] = &LWWRegister{value: r.Value, updatedAt: r.UpdatedAt, deviceID: r.DeviceID, set: r.Set}
	}
	for conv, d := range w.Drafts {
		s.Drafts[conv] = &LWWRegister{value: d.Value, updatedAt: d.UpdatedAt, deviceID: d.DeviceID, set: d.Set}
	}
	return s, nil
}

// Hash returns a deterministic content hash of the state, used by the
// sync protocol's state-hash comparison (mirrors acorde's
// StateProvider.StateHash) to skip a full state exchange when two devices
// already agree.
func (s *State) Hash() ([]byte, error) {
	blob, err := s.canonicalize()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(blob)
	return sum[:], nil
}

// canonicalize produces a byte sequence that depends only on the state's
// logical content, not on Go map iteration order, by sorting every keyed
// collection before encoding.
func (s *State) canonicalize() ([]byte, error) {
	contacts := append([]string(nil), s.Contacts.Values()...)
	sort.Strings(contacts)

	type kv struct {
		K string `json:"k"`
		V string `json:"v"`
	}
	readMarks := make([]kv, 0, len(s.ReadMarks))
	for conv, r := range s.ReadMarks {
		if v, ok := r.Get(); ok {
			readMarks = append(readMarks, kv{K: conv, V: v})
		}
	}
	sort.Slice(readMarks, func(i, j int) bool { return readMarks[i].K < readMarks[j].K })

	drafts := make([]kv, 0, len(s.Drafts))
	for conv, d := range s.Drafts {
		if v, ok := d.Get(); ok {
			drafts = append(drafts, kv{K: conv, V: v})
		}
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].K < drafts[j].K })

	return json.Marshal(struct {
		Contacts  []string `json:"contacts"`
		ReadMarks []kv      `json:"read_marks"`
		Drafts    []kv      `json:"drafts"`
	}{contacts, readMarks, drafts})
}
