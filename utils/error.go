package utils

import "errors"

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrDataIntegrity     = errors.New("data integrity error")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrServiceNotReady   = errors.New("service not ready")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ValidationError is returned for bad caller input; handlers answer it with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
