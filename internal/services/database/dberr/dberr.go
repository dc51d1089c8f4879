package dberr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownDriver = errors.New("unknown database driver")
)

// IsErrNotFound returns true if err is or wraps ErrNotFound.
func IsErrNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
