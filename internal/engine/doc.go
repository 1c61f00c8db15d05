// Package engine evaluates processor networks.
//
// # Single-writer loop
//
// Property notifications, invalidations and structural changes are turned
// into events and appended to a FIFO queue from whatever goroutine caused
// them. Engine.Run drains the queue in one goroutine, coalescing events
// until the queue is empty or the event budget is spent, and then runs a
// pass. Engine.Evaluate runs a pass synchronously for callers without a
// loop (tests, one-shot CLI commands).
//
// # Passes
//
// A pass takes every processor with pending invalidation, extends the set
// along connections to its forward closure, and runs the closure in
// topological order. Each processor moves Invalid -> Processing -> Valid or
// Error. A processor whose input comes from a processor in Error is marked
// Error without running. Processors outside the closure are not touched.
//
// Resource-level invalidation calls InitializeResources before Process;
// output-level invalidation calls only Process.
//
// # Logical clock
//
// Passes and recorded property mutations are stamped from Clock.Next. The
// token of a pass comes from a TokenGenerator and, together with the seq,
// gives the content-addressed pass ID stored in the event log.
package engine
