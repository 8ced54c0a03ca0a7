package pool

import "errors"

var (
	// ErrUnregisteredCategory is returned when a call names a category the
	// registry was never configured with.
	ErrUnregisteredCategory = errors.New("unregistered category")

	// ErrConstructionFailure is returned when the spawner could not produce a
	// new instance.
	ErrConstructionFailure = errors.New("construction failure")

	// ErrNotAuthoritative is returned when a shadow registry is asked to
	// mutate. The executor layer keeps this from happening at runtime.
	ErrNotAuthoritative = errors.New("registry is not authoritative")

	// ErrUnknownHandle is returned when a release names a handle that the
	// category does not own.
	ErrUnknownHandle = errors.New("handle not owned by category")
)
