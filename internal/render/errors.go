package render

import "errors"

var (
	// ErrUnresolvedPlaceholder is returned when the template references a name with no value.
	ErrUnresolvedPlaceholder = errors.New("render: unresolved placeholder")

	// ErrUnusedParameter is returned in Exact mode when a value is never referenced.
	ErrUnusedParameter = errors.New("render: unused parameter")

	ErrUnknownMode = errors.New("render: unknown placeholder mode")
)
