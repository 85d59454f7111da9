package kvs

import "errors"

var (
	// ErrUnsupported is returned when the attached backend has no primitive for an
	// optional operation such as enumeration or clearing.
	ErrUnsupported = errors.New("kvs: unsupported operation")

	// ErrConstruction is returned by New and Open when no usable Store can be built.
	ErrConstruction = errors.New("kvs: cannot construct store")

	// ErrKeyType is returned by KeyOf for values that have no key representation.
	ErrKeyType = errors.New("kvs: unsupported key type")
)
