package weather

import "errors"

// ErrNotFound matches every NotFoundError via errors.Is
var ErrNotFound = errors.New("not found")

const (
	msgNoMETAR   = "No METAR found"
	msgNoHistory = "No history found"
)

// NotFoundError reports that no provider had data for the airport.
// Message is safe to show to API clients.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
