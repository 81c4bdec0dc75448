package errors

import (
	"errors"
	"fmt"
)

// AuthError is the error shape returned to SDK callers. Name is a stable
// machine readable identifier, RecoverySuggestion tells the caller what to do.
type AuthError struct {
	Name               string
	Message            string
	RecoverySuggestion string
	// Kind is the sentinel the error matches with errors.Is.
	Kind error
	// Underlying is the cause, if any.
	Underlying error
}

func (e *AuthError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Is matches the sentinel kind so callers can use errors.Is(err, ErrX).
func (e *AuthError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

func (e *AuthError) Unwrap() error {
	return e.Underlying
}

// New builds an AuthError of the given kind.
func New(kind error, name, message, recovery string) *AuthError {
	return &AuthError{
		Name:               name,
		Message:            message,
		RecoverySuggestion: recovery,
		Kind:               kind,
	}
}

// WithUnderlying returns a copy of e carrying cause.
func (e *AuthError) WithUnderlying(cause error) *AuthError {
	c := *e
	c.Underlying = cause
	return &c
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
