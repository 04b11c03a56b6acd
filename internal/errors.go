package internal

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTimestamp       = fmt.Errorf("%w: invalid timestamp", ErrValidation)
	ErrPrecededByMissingSleep = errors.New("no open sleep session to complete")
	ErrSessionAlreadyOpen     = errors.New("a sleep session is already open")
	ErrDuplicateSessionDate   = errors.New("a completed session already exists for this date")
	ErrGenerationFailed       = errors.New("advice generation failed")
	ErrNoData                 = errors.New("no sessions in the requested range")
	ErrNotReady               = errors.New("profile is not initialized yet")
	ErrNotFound               = errors.New("not found")
)

// Invalid wraps err so that errors.Is(err, ErrValidation) holds.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// AppError is the error body carried in API responses.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}
