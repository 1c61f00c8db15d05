package property

import "errors"

var (
	// ErrReadOnly is returned by SetValue on a read-only property.
	ErrReadOnly = errors.New("property is read-only")

	// ErrTypeMismatch is returned when a value has the wrong kind.
	ErrTypeMismatch = errors.New("value type mismatch")

	// ErrOutOfDomain is returned by properties that reject, rather than
	// clamp, values outside their domain (unknown options).
	ErrOutOfDomain = errors.New("value out of domain")

	// ErrDuplicateIdentifier is returned when a sibling already uses the identifier.
	ErrDuplicateIdentifier = errors.New("duplicate property identifier")

	// ErrAlreadyOwned is returned when adding a property that has an owner.
	ErrAlreadyOwned = errors.New("property already has an owner")

	// ErrShapeFrozen is returned when adding or removing properties on an
	// owner whose shape has been finalized.
	ErrShapeFrozen = errors.New("owner shape is frozen")

	// ErrNotFound is returned when no property matches an identifier or path.
	ErrNotFound = errors.New("property not found")
)
