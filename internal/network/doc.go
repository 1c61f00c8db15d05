// Package network holds processors and the typed connections between their
// ports.
//
// The connection graph is a DAG. Connect rejects, with a ConfigError, any
// edge that would close a cycle, connects incompatible data types, or
// targets an occupied single inport. Nothing is ever accepted silently.
//
// The network does not evaluate anything. It forwards processor
// invalidations to a listener (the evaluator) and answers the graph queries
// the evaluator needs: forward closure, topological order, and independent
// waves.
//
// Property links copy values between processors without a data edge and do
// not take part in ordering.
package network
