package db

import "errors"

var (
	ErrNotFound    = errors.New("db: not found")
	ErrConflict    = errors.New("db: conflict")
	ErrInvalid     = errors.New("db: invalid")
	ErrInternal    = errors.New("db: internal")
	ErrUnavailable = errors.New("db: unavailable")
)

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool    { return errors.Is(err, ErrConflict) }
func IsInvalid(err error) bool     { return errors.Is(err, ErrInvalid) }
func IsInternal(err error) bool    { return errors.Is(err, ErrInternal) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsPersistence reports whether err means the backend could not serve the call.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrInternal)
}
