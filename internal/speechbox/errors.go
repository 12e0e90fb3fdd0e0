package speechbox

import (
	"errors"
)

// Domain failures returned by the Service. Anything else a caller sees matches ErrStorage.
var (
	ErrBoxNotFound   = errors.New("box not found")
	ErrStoryNotFound = errors.New("story not found")
	ErrNoTokensLeft  = errors.New("there are no tokens remaining")
	ErrInvalidInput  = errors.New("invalid input")
	ErrStorage       = errors.New("an internal error occurred")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindStorage Kind = iota
	KindNotFound
	KindPoolExhausted
	KindValidation
)

// KindOf classifies err. Unknown errors are storage failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrBoxNotFound), errors.Is(err, ErrStoryNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoTokensLeft):
		return KindPoolExhausted
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	}
	return KindStorage
}

// StorageError wraps a driver or transaction failure. It matches ErrStorage
// with errors.Is; the wrapped cause is for logs only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func isDomainError(err error) bool {
	return KindOf(err) != KindStorage
}
