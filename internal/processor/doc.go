// Package processor defines the node type of a processing network.
//
// A processor owns a fixed set of ports and properties declared once at
// construction (its Shape). Afterwards only values change. The evaluator is
// the only caller of Process and InitializeResources.
//
// Invalidation has two tiers. A property change at InvalidOutput makes the
// next evaluation call Process. A change at InvalidResources additionally
// calls InitializeResources first, which is where expensive setup (program
// compilation, buffer allocation) belongs.
//
// Variation between processor kinds is expressed through Components:
// strategy objects that contribute ports, properties, and resource setup to
// the processor that holds them, rather than through base-type hierarchies.
package processor
