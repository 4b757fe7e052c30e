package therapist

import "errors"

// ErrTherapistNotFound is returned when no therapist matches the lookup.
var ErrTherapistNotFound = errors.New("therapist not found")
