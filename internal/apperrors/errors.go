// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotADescriptorFile = errors.New("not a torrent file")
	ErrBlockedByHost      = errors.New("blocked by host")
	ErrRemoteNotFound     = errors.New("remote not found")
	ErrRemoteTimeout      = errors.New("remote timeout")
	ErrRemoteHTTP         = errors.New("remote http error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidPath        = errors.New("invalid path")
	ErrArchiveBuild       = errors.New("archive build failed")
	ErrEngine             = errors.New("engine failure")
)

// Error carries a sentinel for classification plus request-facing context.
type Error struct {
	Sentinel    error  // Wrapped sentinel for errors.Is() classification
	Message     string // Human-readable message
	Remediation string // Actionable alternative locator, when one can be synthesized
	StatusCode  int    // Upstream HTTP status, for remote fetch failures
	Cause       error  // Underlying error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// InvalidInput flags a locator that is neither a magnet link, a torrent URL,
// nor a 40-character info hash.
func InvalidInput(message string) error {
	return &Error{Sentinel: ErrInvalidInput, Message: message}
}

// NotADescriptorFile flags payload bytes that are not valid bencode.
func NotADescriptorFile(message string) error {
	return &Error{Sentinel: ErrNotADescriptorFile, Message: message}
}

// BlockedByHost flags an upstream 403. remediation carries a synthesized
// magnet link when an info hash could be recovered from the locator.
func BlockedByHost(message, remediation string) error {
	return &Error{Sentinel: ErrBlockedByHost, Message: message, Remediation: remediation, StatusCode: 403}
}

// RemoteNotFound flags an upstream 404.
func RemoteNotFound(message string) error {
	return &Error{Sentinel: ErrRemoteNotFound, Message: message, StatusCode: 404}
}

// RemoteTimeout flags a descriptor fetch that exceeded its deadline.
func RemoteTimeout(message string, cause error) error {
	return &Error{Sentinel: ErrRemoteTimeout, Message: message, Cause: cause}
}

// RemoteHTTP flags any other non-2xx upstream status.
func RemoteHTTP(status int, message string) error {
	return &Error{Sentinel: ErrRemoteHTTP, Message: message, StatusCode: status}
}

// NotFound flags an unknown job id or a missing file within a job.
func NotFound(message string) error {
	return &Error{Sentinel: ErrNotFound, Message: message}
}

// InvalidPath flags an absolute or parent-traversing file selector.
func InvalidPath(message string) error {
	return &Error{Sentinel: ErrInvalidPath, Message: message}
}

// ArchiveBuild wraps a failure while building a download archive.
func ArchiveBuild(cause error) error {
	return &Error{Sentinel: ErrArchiveBuild, Message: fmt.Sprintf("failed to prepare download: %v", cause), Cause: cause}
}

// Engine wraps an underlying transfer engine error.
func Engine(op string, cause error) error {
	return &Error{Sentinel: ErrEngine, Message: fmt.Sprintf("%s: %v", op, cause), Cause: cause}
}

// Remediation extracts the remediation locator from err, if any.
func Remediation(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Remediation
	}
	return ""
}
