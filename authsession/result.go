package authsession

import "errors"

// Result is the uniform outcome of a manager operation. Failures carry a
// user-facing message rather than an error value.
type Result[T any] struct {
	Success bool
	Data    T
	Error   string
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](msg string) Result[T] {
	return Result[T]{Error: msg}
}

// Err returns the failure message as an error, nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(r.Error)
}
