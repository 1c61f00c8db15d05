// Package property implements observable, named units of processor state.
//
// Properties live in an ownership tree: a processor owns properties, and a
// Composite property owns further properties. Each property has exactly one
// owner for its lifetime and an identifier that is unique among siblings, so
// the dotted path from the root owner is a stable key for serialization,
// links, and external synchronization.
//
// Setting a value notifies observers synchronously in registration order and
// then reports the change to the owner, which is how processors become
// invalid. Ordinals clamp out-of-range values. Values of the wrong kind are
// rejected and the prior value is kept.
//
// Removing a property notifies OwnerObservers with OnWillRemoveProperty
// while the property is still attached. Consumers that mirror property state
// (UI widgets, the browser bridge) unsubscribe there.
package property
