// Package errs provides the shared error types used across the order
// choreography services. Every type follows the same shape:
//   - a sentinel error variable (e.g., ErrValueIsRequired) usable with errors.Is
//   - a struct carrying the offending parameter and an optional cause
//   - constructors with and without a cause
//   - Error() for formatting and Unwrap() returning the sentinel
//
// Domain packages wrap these types (or define their own in the same shape) so
// that transport adapters can map failures to responses without string matching.
package errs
