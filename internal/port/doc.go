// Package port implements typed data endpoints on processors.
//
// Data flows strictly from an Outport to the Inports connected to it. An
// Outport written during Process holds the data as staged; it only becomes
// readable once the evaluator commits it after Process succeeded. Reading an
// Inport whose source has not committed data in the current pass returns
// ErrNotReady rather than stale or partial data.
//
// A MultiInport accepts any number of sources and exposes them as a lazy,
// restartable sequence.
package port
