package services

import "errors"

var (
	// ErrNotFound is returned when the referenced record does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadySettled is returned when a checkout targets a paid or refunded record
	ErrAlreadySettled = errors.New("already paid or refunded")
	// ErrWebhookSecret is returned when no webhook signing secret is configured
	ErrWebhookSecret = errors.New("webhook signing secret is not configured")
	// ErrInvalidSignature is returned when a webhook payload fails verification
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent is returned when a verified event carries an undecodable object
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// ValidationError describes input the caller has to fix
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
