// Package ir provides the value model shared by properties, network
// documents, and the event store.
//
// ir imports nothing internal; every other package may import it.
//
// Key design constraints:
//   - Values are a closed set (Null, String, Int, Float, Bool, Array, Object)
//   - Floats must be finite; canonical JSON prints them in shortest form
//   - Object keys are ordered by UTF-16 code units whenever order matters
//   - Logical clocks (seq) only, never wall-clock timestamps, in hashed data
package ir
