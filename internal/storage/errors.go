package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the
// caller's tenant. The graph layer maps it onto its typed not-found kind.
var ErrNotFound = errors.New("storage: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
