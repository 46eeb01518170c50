package sched

// overCapacityError signals admission refusal because max_batch sequence
// states are resident. Maps to 429 at the HTTP layer.
type overCapacityError struct{}

func (overCapacityError) Error() string { return "over capacity: state cache full" }

// ErrOverCapacity constructs an over-capacity rejection.
func ErrOverCapacity() error { return overCapacityError{} }

// IsOverCapacity reports whether err indicates admission backpressure.
func IsOverCapacity(err error) bool {
	_, ok := err.(overCapacityError)
	return ok
}

// unauthorizedError signals a failed app-key check. Maps to 401.
type unauthorizedError struct{ appID string }

func (e unauthorizedError) Error() string {
	if e.appID == "" {
		return "unauthorized"
	}
	return "unauthorized: " + e.appID
}

// ErrUnauthorized constructs an authorization rejection.
func ErrUnauthorized(appID string) error { return unauthorizedError{appID: appID} }

// IsUnauthorized reports whether err indicates a failed app-key check.
func IsUnauthorized(err error) bool {
	_, ok := err.(unauthorizedError)
	return ok
}

// notReadyError signals that no model is serving yet (startup or a reload in
// progress after device loss). Maps to 503.
type notReadyError struct{}

func (notReadyError) Error() string { return "no model loaded" }

// ErrNotReady constructs a not-ready rejection.
func ErrNotReady() error { return notReadyError{} }

// IsNotReady reports whether err indicates the executor is unavailable.
func IsNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}
