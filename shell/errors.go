package shell

import (
	"errors"
	"fmt"
)

// StructuralError marks violations of the load-order state machine. Unlike
// ordinary handler errors, which become line-level results, a structural
// error aborts the whole IOC interpretation; the concurrent loader turns it
// into an errored placeholder instance.
type StructuralError struct {
	Err error
}

func (e StructuralError) Error() string {
	return e.Err.Error()
}

func (e StructuralError) Unwrap() error {
	return e.Err
}

func structuralf(format string, args ...any) error {
	return StructuralError{
		Err: fmt.Errorf(format, args...),
	}
}

func IsStructural(err error) bool {
	var s StructuralError
	return errors.As(err, &s)
}

var (
	ErrAlreadyInitialized = errors.New("IOC already initialized")
	ErrSchemaMissing      = errors.New("database definition not yet loaded")
)
