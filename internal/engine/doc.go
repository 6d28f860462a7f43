// Package engine runs zome calls for one instance.
//
// Single-writer event loop:
// Calls are submitted with Call from any goroutine and executed one at a time
// by Run, in the order they were enqueued. Every store write for an instance
// happens in that goroutine, so a call always observes the effects of every
// call queued before it.
//
// Each call:
//  1. is stamped with the next seq from the instance Clock
//  2. is recorded as an Invocation
//  3. is checked against the bundle (zome, capability, function, inputs)
//  4. runs its handler with an API bound to the instance store and agent
//  5. is closed by a Completion whose output case is Ok or Err
//
// Application failures never surface as Go errors from Call; they become the
// Err branch of the Result. Call returns an error only when the engine itself
// could not run or record the call.
//
// Ordering uses the logical seq, never wall-clock time. The clock resumes
// from the store's highest seq when an engine is created over an existing
// database.
package engine
