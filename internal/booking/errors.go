package booking

import "errors"

var (
	// ErrBookingNotFound is returned when no booking matches the lookup.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrServiceNotFound is returned when no service matches the lookup.
	ErrServiceNotFound = errors.New("service not found")
)
