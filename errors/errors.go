package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the chat-state layer and the HTTP boundary. Each
// sentinel carries a stable kind string used in API responses.

var (
	// ErrAuthExpired indicates a missing or expired session token
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNetwork indicates a connectivity failure reaching a dependency
	ErrNetwork = errors.New("network error")

	// ErrInvalidChatID indicates a malformed or empty chat identifier
	ErrInvalidChatID = errors.New("invalid chat id")

	// ErrInvalidFileID indicates a malformed or empty file identifier
	ErrInvalidFileID = errors.New("invalid file id")

	// ErrNoUserID indicates the caller's user identifier is missing
	ErrNoUserID = errors.New("no user id")

	// ErrStoreUnavailable indicates the persistence store cannot be reached
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidData indicates an empty or malformed payload
	ErrInvalidData = errors.New("invalid data")

	// ErrFileNotFound indicates the requested file row does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrFileAccessDenied indicates the referenced file is owned by another user
	ErrFileAccessDenied = errors.New("file access denied")

	// ErrChatNotFound indicates the requested chat row does not exist
	ErrChatNotFound = errors.New("chat not found")

	// ErrNoData indicates a dependency answered without usable data
	ErrNoData = errors.New("no data returned")

	// ErrModelNotConfigured indicates the model API key or provider is unset
	ErrModelNotConfigured = errors.New("model not configured")

	// ErrUnknown is the fallback for unclassified failures
	ErrUnknown = errors.New("unknown error")
)

// Kind strings reported in API error bodies.
const (
	KindAuthExpired        = "AUTH_EXPIRED"
	KindNetwork            = "NETWORK_ERROR"
	KindInvalidChatID      = "INVALID_CHAT_ID"
	KindInvalidFileID      = "INVALID_FILE_ID"
	KindNoUserID           = "NO_USER_ID"
	KindStoreUnavailable   = "STORE_UNAVAILABLE"
	KindInvalidData        = "INVALID_DATA"
	KindFileNotFound       = "FILE_NOT_FOUND"
	KindFileAccessDenied   = "FILE_ACCESS_DENIED"
	KindChatNotFound       = "CHAT_NOT_FOUND"
	KindNoData             = "NO_DATA_RETURNED"
	KindModelNotConfigured = "MODEL_NOT_CONFIGURED"
	KindUnknown            = "UNKNOWN_ERROR"
)

// Kind maps an error chain to its stable kind string. Unrecognized errors
// report as UNKNOWN_ERROR.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrInvalidChatID):
		return KindInvalidChatID
	case errors.Is(err, ErrInvalidFileID):
		return KindInvalidFileID
	case errors.Is(err, ErrNoUserID):
		return KindNoUserID
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrInvalidData):
		return KindInvalidData
	case errors.Is(err, ErrFileNotFound):
		return KindFileNotFound
	case errors.Is(err, ErrFileAccessDenied):
		return KindFileAccessDenied
	case errors.Is(err, ErrChatNotFound):
		return KindChatNotFound
	case errors.Is(err, ErrNoData):
		return KindNoData
	case errors.Is(err, ErrModelNotConfigured):
		return KindModelNotConfigured
	default:
		return KindUnknown
	}
}

// WrapError wraps an error with a context message
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with a formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if error is a chat or file not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChatNotFound) || errors.Is(err, ErrFileNotFound)
}

// IsBadInput checks if error is a validation failure raised before any
// store call
func IsBadInput(err error) bool {
	return errors.Is(err, ErrInvalidChatID) ||
		errors.Is(err, ErrInvalidFileID) ||
		errors.Is(err, ErrNoUserID) ||
		errors.Is(err, ErrInvalidData)
}

// IsRetryable checks if error is a connectivity failure worth retrying
// on a read path
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrStoreUnavailable)
}

// IsAuthExpired checks if error is an authentication failure
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
