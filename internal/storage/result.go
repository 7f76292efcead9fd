package storage

// Result is the repository layer's Ok(Some)/Ok(None)/Err sum type: a
// successful lookup that found nothing is distinct from a failed lookup, so
// callers never mistake a missing row for a query error.
type Result[T any] struct {
	value T
	found bool
	err   error
}

// Ok wraps a found value.
func Ok[T any](value T) Result[T] { return Result[T]{value: value, found: true} }

// None represents a successful query that found nothing.
func None[T any]() Result[T] { return Result[T]{} }

// Err wraps a query failure.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Unwrap returns (value, found, err) for callers that prefer the idiomatic
// Go tuple form over chaining.
func (r Result[T]) Unwrap() (T, bool, error) { return r.value, r.found, r.err }

// IsErr reports whether the result carries a failure.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Found reports whether the result carries a value (only meaningful when
// IsErr is false).
func (r Result[T]) Found() bool { return r.found }

// Err returns the wrapped error, or nil.
func (r Result[T]) Error() error { return r.err }

// Value returns the wrapped value; zero value if not found or errored.
func (r Result[T]) Value() T { return r.value }
