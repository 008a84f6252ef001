package synccore

import "time"

// lwwEntry is one element's merge metadata in an LWWSet: present or
// tombstoned, timestamped, with the originating device ID as a
// deterministic tiebreaker for simultaneous writes from different
// devices (mirrors the vector-clock tie-break acorde's crdt.ReplicaState
// applies, reduced to a single last-writer-wins timestamp since synccore
// has no ordering requirement beyond "most recent wins").
type lwwEntry struct {
	Value     string
	Removed   bool
	UpdatedAt time.Time
	DeviceID  string
}

// LWWSet is an add/remove set that converges regardless of merge order,
// used for the linked-device contact list (spec.md §4.7). Removed
// elements are kept as tombstones rather than deleted outright, so a
// late-arriving "add" from a device that hasn't seen the removal doesn't
// resurrect it if the removal is newer.
type LWWSet struct {
	entries map[string]lwwEntry
}

// NewLWWSet returns an empty set.
func NewLWWSet() *LWWSet {
	return &LWWSet{entries: make(map[string]lwwEntry)}
}

// Add records value as present as of (at, deviceID), winning over any
// existing entry only if it is newer (or equal time with a larger device
// ID, for deterministic tie-breaking between devices with clocks that
// read the same wall-clock second).
func (s *LWWSet) Add(value string, at time.Time, deviceID string) {
	s.apply(lwwEntry{Value: value, Removed: false, UpdatedAt: at, DeviceID: deviceID})
}

// Remove tombstones value as of (at, deviceID).
func (s *LWWSet) Remove(value string, at time.Time, deviceID string) {
	s.apply(lwwEntry{Value: value, Removed: true, UpdatedAt: at, DeviceID: deviceID})
}

func (s *LWWSet) apply(next lwwEntry) {
	cur, ok := s.entries[next.Value]
	if !ok || wins(next.UpdatedAt, next.DeviceID, cur.UpdatedAt, cur.DeviceID) {
		s.entries[next.Value] = next
	}
}

// Contains reports whether value is currently present (added and not
// subsequently removed by a newer write).
func (s *LWWSet) Contains(value string) bool {
	e, ok := s.entries[value]
	return ok && !e.Removed
}

// Values returns all currently-present elements, in no particular order.
func (s *LWWSet) Values() []string {
	out := make([]string, 0, len(s.entries))
	for v, e := range s.entries {
		if !e.Removed {
			out = append(out, v)
		}
	}
	return out
}

// Merge folds another replica's entries into s, keeping the winner of
// each value's two versions.
func (s *LWWSet) Merge(other *LWWSet) {
	for _, e := range other.entries {
		s.apply(e)
	}
}

// LWWRegister is a single last-writer-wins value, used for per-
// conversation drafts and read marks (spec.md §4.7): whichever device
// wrote most recently determines the value every device converges to.
type LWWRegister struct {
	value     string
	updatedAt time.Time
	deviceID  string
	set       bool
}

// NewLWWRegister returns an empty (unset) register.
func NewLWWRegister() *LWWRegister {
	return &LWWRegister{}
}

// Set writes value as of (at, deviceID), winning over the current value
// only if it is newer (or tie-broken by device ID).
func (r *LWWRegister) Set(value string, at time.Time, deviceID string) {
	if !r.set || wins(at, deviceID, r.updatedAt, r.deviceID) {
		r.value, r.updatedAt, r.deviceID, r.set = value, at, deviceID, true
	}
}

// Get returns the current value and whether the register has ever been
// set.
func (r *LWWRegister) Get() (string, bool) {
	return r.value, r.set
}

// Merge keeps the winner of r's and other's current values.
func (r *LWWRegister) Merge(other *LWWRegister) {
	if other.set {
		r.Set(other.value, other.updatedAt, other.deviceID)
	}
}

// wins reports whether (atA, idA) should overwrite (atB, idB) under
// last-writer-wins semantics: strictly newer timestamp wins outright;
// equal timestamps fall back to comparing device IDs so every replica
// resolves the tie the same way.
func wins(atA time.Time, idA string, atB time.Time, idB string) bool {
	if atA.After(atB) {
		return true
	}
	if atA.Before(atB) {
		return false
	}
	return idA > idB
}
