package httpapi

import (
	"encoding/json"
	"net/http"

	"rwkvd/internal/runtime"
	"rwkvd/internal/sched"
	"rwkvd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps scheduler and runtime errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case sched.IsUnauthorized(err):
		return http.StatusUnauthorized
	case sched.IsOverCapacity(err):
		return http.StatusTooManyRequests
	case sched.IsNotReady(err), runtime.IsLoadError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeMappedError writes err with its mapped status and records backpressure.
func writeMappedError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("over_capacity")
	}
	writeJSONError(w, status, err.Error())
}
