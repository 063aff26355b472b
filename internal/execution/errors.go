package execution

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrTimeout is returned when an invocation exceeds the function timeout.
	ErrTimeout = errors.New("task timed out")

	// ErrThrottled is returned when every execution slot is busy.
	ErrThrottled = errors.New("rate exceeded")

	// ErrUnknownFunction is returned when no function is registered under
	// the requested id.
	ErrUnknownFunction = errors.New("function not found")

	// ErrDuplicateFunction is returned when a function id is registered
	// twice.
	ErrDuplicateFunction = errors.New("function already registered")
)

// FunctionError is a failure raised by the function itself, reported the way
// the Lambda service reports it.
type FunctionError struct {
	Message string `json:"errorMessage"`
	Type    string `json:"errorType"`

	panicked bool
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Panicked reports whether the function panicked.
func (e *FunctionError) Panicked() bool {
	return e.panicked
}

func newFunctionError(err error) *FunctionError {
	return &FunctionError{
		Message: err.Error(),
		Type:    errorType(err),
	}
}

func newPanicError(value any) *FunctionError {
	return &FunctionError{
		Message:  fmt.Sprint(value),
		Type:     "Runtime.Panic",
		panicked: true,
	}
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Ptr {
		return t.Elem().Name()
	}
	return t.Name()
}
