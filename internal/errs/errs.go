package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested project or artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the operation collides with existing state, e.g. a duplicate project id.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a malformed payload, naming the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid payload: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// AsValidation unwraps err into a *ValidationError when it carries one.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
