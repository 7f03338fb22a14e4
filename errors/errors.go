package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrAuthFailure        = fmt.Errorf("invalid credentials")
	ErrNotRegistered      = fmt.Errorf("connection has no bound username")
	ErrRecipientNotFound  = fmt.Errorf("recipient is not online")
	ErrRoomRequired       = fmt.Errorf("room is required")
	ErrValidationFailure  = fmt.Errorf("event failed validation")
	ErrPersistenceFailure = fmt.Errorf("storage append failed")
	ErrPayloadTooLarge    = fmt.Errorf("message body exceeds the configured ceiling")
	ErrUserAlreadyExists  = fmt.Errorf("username already taken")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
)

// CodeOf maps the error taxonomy to the stable reason codes carried by
// outbound error frames. Unknown errors collapse to INTERNAL.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrAuthFailure), errors.Is(err, ErrInvalidCredentials):
		return "AUTH_FAILURE"
	case errors.Is(err, ErrNotRegistered):
		return "NOT_REGISTERED"
	case errors.Is(err, ErrRecipientNotFound):
		return "RECIPIENT_NOT_FOUND"
	case errors.Is(err, ErrRoomRequired), errors.Is(err, ErrValidationFailure):
		return "VALIDATION_FAILURE"
	case errors.Is(err, ErrPersistenceFailure):
		return "PERSISTENCE_FAILURE"
	case errors.Is(err, ErrPayloadTooLarge):
		return "PAYLOAD_TOO_LARGE"
	default:
		return "INTERNAL"
	}
}
