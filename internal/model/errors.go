package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrLinkInactive     = errors.New("link is inactive")
	ErrCodeConflict     = errors.New("short code already exists")
	ErrTemplateInUse    = errors.New("template is referenced by links")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrJobTimeout       = errors.New("job timeout")
)

// ValidationError ошибка входных данных, всегда отдаётся клиенту как 400
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError создаёт ошибку валидации поля
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation проверяет, что в цепочке есть ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
