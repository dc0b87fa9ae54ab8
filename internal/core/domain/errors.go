package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDesignNotFound    = errors.New("design not found")
	ErrBusy              = errors.New("preview already in progress")
	ErrCompositionFailed = errors.New("composition failed")
	ErrTemporary         = errors.New("temporary failure")
	ErrSubmissionFailed  = errors.New("order submission failed")
	ErrSessionNotFound   = errors.New("session not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
