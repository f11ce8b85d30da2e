package registry

import "errors"

var (
	// ErrInvalidInput indicates an empty content id or uploader, a zero size,
	// a zero rate, or a price that does not fit in 64 bits.
	ErrInvalidInput = errors.New("registry: invalid input")

	// ErrDuplicateResource indicates the content id is already registered.
	ErrDuplicateResource = errors.New("registry: content id already registered")

	// ErrNotFound indicates no file record exists for the given id or content id.
	ErrNotFound = errors.New("registry: file not found")

	// ErrInvalidState indicates a transition was attempted from the wrong lifecycle status.
	ErrInvalidState = errors.New("registry: invalid lifecycle state")

	// ErrPortBound indicates the payment port was already handed to a collaborator.
	ErrPortBound = errors.New("registry: payment port already bound")
)
