package runtime

import "fmt"

// loadError signals a failed load/reload: bad path, device unavailability, or
// an incompatible quantization plan. Fatal to the attempted load only; a prior
// loaded model keeps serving.
type loadError struct {
	msg   string
	cause error
}

func (e loadError) Error() string {
	if e.cause != nil {
		return "load: " + e.msg + ": " + e.cause.Error()
	}
	return "load: " + e.msg
}

func (e loadError) Unwrap() error { return e.cause }

// ErrLoad constructs a load error.
func ErrLoad(msg string, cause error) error { return loadError{msg: msg, cause: cause} }

// ErrLoadf constructs a load error from a format string.
func ErrLoadf(format string, args ...any) error {
	return loadError{msg: fmt.Sprintf(format, args...)}
}

// IsLoadError reports whether err came from a failed load/reload.
func IsLoadError(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// deviceFatalError signals accelerator context loss. Every sequence in the
// affected runtime batch fails, and the manager must reload before further
// ticks proceed.
type deviceFatalError struct{ cause error }

func (e deviceFatalError) Error() string { return "device fatal: " + e.cause.Error() }

func (e deviceFatalError) Unwrap() error { return e.cause }

// ErrDeviceFatal wraps a batch-fatal executor failure.
func ErrDeviceFatal(cause error) error { return deviceFatalError{cause: cause} }

// IsDeviceFatal reports whether err indicates accelerator context loss.
func IsDeviceFatal(err error) bool {
	_, ok := err.(deviceFatalError)
	return ok
}
