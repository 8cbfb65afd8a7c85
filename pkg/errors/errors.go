package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotInitialized   = errors.New("manager is not initialized")
	ErrAlreadyRunning   = errors.New("manager is already initialized")
	ErrNoDevices        = errors.New("no managed devices found")
	ErrShuttingDown     = errors.New("manager is shutting down")
	ErrDriverRequired   = errors.New("a device driver is required")
	ErrLayoutPathNeeded = errors.New("a layout file path is required")
)

// DriverError wraps a non-success code returned by the device driver. It
// carries the driver's numeric code and the call site it came from.
type DriverError struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error message.
func (e DriverError) Error() string {
	return fmt.Sprintf("%s: %s (driver code %d)", e.Op, e.Message, e.Code)
}

func NewDriverError(code int, op, message string) error {
	return DriverError{
		Code:    code,
		Op:      op,
		Message: message,
	}
}

// IsDriverError reports whether err is (or wraps) a DriverError.
func IsDriverError(err error) bool {
	var de DriverError

	return errors.As(err, &de)
}

type invalidDeviceIndexError struct {
	index int
	count int
}

// Error returns the error message.
func (e invalidDeviceIndexError) Error() string {
	return fmt.Sprintf("device index %d out of range, %d devices managed", e.index, e.count)
}

func NewInvalidDeviceIndex(index, count int) error {
	return invalidDeviceIndexError{
		index: index,
		count: count,
	}
}

// IsInvalidDeviceIndex reports whether err represents an out-of-range
// device index. Such errors never reach the driver.
func IsInvalidDeviceIndex(err error) bool {
	var ie invalidDeviceIndexError

	return errors.As(err, &ie)
}

type partitionNotFoundError struct {
	uuid string
}

// Error returns the error message.
func (e partitionNotFoundError) Error() string {
	return fmt.Sprintf("partition %s not found in current registry", e.uuid)
}

func NewPartitionNotFound(uuid string) error {
	return partitionNotFoundError{uuid: uuid}
}

// IsNotFound reports whether err means the uuid was absent from the
// registry and cache at the time of the call.
func IsNotFound(err error) bool {
	var ne partitionNotFoundError

	return errors.As(err, &ne)
}

type timeoutError struct {
	op      string
	timeout time.Duration
}

// Error returns the error message.
func (e timeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.op, e.timeout)
}

func NewTimeout(op string, timeout time.Duration) error {
	return timeoutError{
		op:      op,
		timeout: timeout,
	}
}

// IsTimeout reports whether err means a wait expired before the operation
// completed. The operation itself may still finish later.
func IsTimeout(err error) bool {
	var te timeoutError

	return errors.As(err, &te)
}

type initError struct {
	cause error
}

// Error returns the error message.
func (e initError) Error() string {
	return fmt.Sprintf("manager initialization failed: %v", e.cause)
}

func (e initError) Unwrap() error {
	return e.cause
}

// NewInitFailure marks an error as fatal to startup. The manager cannot
// run in a partially-initialized state, so callers are expected to abort.
func NewInitFailure(cause error) error {
	return initError{cause: cause}
}

// IsInitFailure reports whether err is a fatal initialization error.
func IsInitFailure(err error) bool {
	var ie initError

	return errors.As(err, &ie)
}
