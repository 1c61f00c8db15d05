// Package store provides SQLite-backed durable storage for evaluation logs.
//
// The store is an append-only log of:
//   - Snapshots: serialized networks keyed by content hash
//   - Passes: one row per evaluation pass with its executed, failed and
//     skipped processors
//   - Processor runs: the outcome of each processor within a pass
//   - Mutations: property changes observed between passes
//
// All ordering uses the evaluator's logical seq, never timestamps, so a log
// read back from disk is identical across runs. Queries order by
// seq ASC and then by a binary-collated identifier.
//
// Mutations can be re-applied to a freshly built network with
// ReplayMutations, which reproduces the property state the log describes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
