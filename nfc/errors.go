package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a class of NFC bridge errors for programmatic handling.
type ErrorCode int

const (
	// Registry errors (100-199)
	ErrCodeEmptyDiscovery ErrorCode = iota + 100
	ErrCodeListenerPanic

	// Provider errors (200-299)
	ErrCodeNoAdapter ErrorCode = iota + 198
	ErrCodeProviderClosed
	ErrCodeInvalidPayload
	ErrCodeScanFailed
)

// Error provides structured error information for programmatic handling.
type Error struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "notify", "Scan")
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinel values for errors.Is comparisons.
var (
	ErrEmptyDiscovery = &Error{Code: ErrCodeEmptyDiscovery, Message: "empty discovery"}
	ErrNoAdapter      = &Error{Code: ErrCodeNoAdapter, Message: "no NFC adapter"}
	ErrProviderClosed = &Error{Code: ErrCodeProviderClosed, Message: "provider closed"}
	ErrInvalidPayload = &Error{Code: ErrCodeInvalidPayload, Message: "invalid payload"}
)

// NewEmptyDiscoveryError creates the error reported for empty discoveries
// under EmptyReport.
func NewEmptyDiscoveryError(op string) *Error {
	return &Error{
		Code:    ErrCodeEmptyDiscovery,
		Op:      op,
		Message: "empty discovery dropped",
	}
}

// NewListenerPanicError wraps a recovered listener panic.
func NewListenerPanicError(op string, index int, recovered any) *Error {
	return &Error{
		Code:    ErrCodeListenerPanic,
		Op:      op,
		Message: fmt.Sprintf("listener %d panicked: %v", index, recovered),
	}
}

// NewNoAdapterError creates an error for a missing or disabled adapter.
func NewNoAdapterError(op string, cause error) *Error {
	return &Error{
		Code:    ErrCodeNoAdapter,
		Op:      op,
		Message: "no NFC adapter",
		Cause:   cause,
	}
}

// NewInvalidPayloadError creates an error for malformed provider input.
func NewInvalidPayloadError(op, message string, cause error) *Error {
	return &Error{
		Code:    ErrCodeInvalidPayload,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// NewScanError creates an error for a failed hardware scan.
func NewScanError(op string, cause error) *Error {
	return &Error{
		Code:    ErrCodeScanFailed,
		Op:      op,
		Message: "scan failed",
		Cause:   cause,
	}
}

// IsEmptyDiscoveryError checks if an error reports a dropped empty discovery.
func IsEmptyDiscoveryError(err error) bool {
	return GetErrorCode(err) == ErrCodeEmptyDiscovery
}

// IsNoAdapterError checks if an error indicates a missing adapter.
func IsNoAdapterError(err error) bool {
	if err == nil {
		return false
	}
	var nfcErr *Error
	if errors.As(err, &nfcErr) {
		return nfcErr.Code == ErrCodeNoAdapter
	}
	// libnfc reports these as plain strings
	errStr := err.Error()
	return strings.Contains(errStr, "no device") ||
		strings.Contains(errStr, "device not found")
}

// GetErrorCode extracts the ErrorCode from an error if it's an *Error.
// Returns 0 otherwise.
func GetErrorCode(err error) ErrorCode {
	var nfcErr *Error
	if errors.As(err, &nfcErr) {
		return nfcErr.Code
	}
	return 0
}
