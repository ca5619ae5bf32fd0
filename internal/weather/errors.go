package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks connection failures and timeouts talking to the provider.
	ErrNetwork = errors.New("network error")

	// ErrRetryExhausted is matched by RetryExhaustedError.
	ErrRetryExhausted = errors.New("retry budget exhausted")

	// ErrDecode is returned for malformed or inconsistent provider payloads.
	ErrDecode = errors.New("decode error")

	// ErrDataMisalignment is returned when a requested parameter cannot be
	// aligned with the payload's time axis.
	ErrDataMisalignment = errors.New("data misalignment")

	// ErrValidation is returned for bad user input, before any network call.
	ErrValidation = errors.New("validation error")

	// ErrProvider is returned when the provider rejects a request (4xx).
	ErrProvider = errors.New("provider rejected request")

	// ErrCircuitOpen is returned while the provider circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnknownLocation is returned when a location name is not in the catalog.
	ErrUnknownLocation = errors.New("unknown location")
)

// RetryExhaustedError carries the last underlying cause after every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}
