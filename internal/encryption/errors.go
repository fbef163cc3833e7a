package encryption

import "errors"

var (
	// ErrAuthentication is returned when a key cannot be unwrapped or a payload tag does not verify.
	// It covers wrong passwords as well as tampered or corrupted artifacts.
	ErrAuthentication = errors.New("authentication failed: wrong password or corrupted data")
	// ErrMalformedHeader is returned when an artifact is too short to hold a header.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrStopped is returned internally when the consumer stops pulling events mid-file.
	ErrStopped = errors.New("processing stopped by caller")
)

// IsRecoverable reports whether err only affects the current file, so that the batch may continue.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrMalformedHeader)
}
