// Package commandbus serializes every externally-originated operation
// onto the single goroutine that owns the Network component, the same
// way the teacher's Tox.Iterate() call path already made every
// network-touching operation single-threaded by construction (spec.md
// §4.8). commandbus makes that serialization explicit and available from
// any caller goroutine: Submit enqueues a typed Command and blocks on its
// one-shot reply channel (bounded by a context deadline); SubmitAsync
// returns a Future immediately for callers that can poll or await later.
package commandbus
