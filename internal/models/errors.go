package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrPermission      = errors.New("permission denied")
	ErrUnauthenticated = fmt.Errorf("%w: not signed in", ErrPermission)
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("post not found")
	ErrNetwork         = errors.New("network error")
)

// UserMessage возвращает текст ошибки для показа пользователю
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Sign in to continue"
	case errors.Is(err, ErrPermission):
		return "You can only change your own posts"
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "This post is no longer available"
	case errors.Is(err, ErrNetwork):
		return "Connection problem, try again later"
	default:
		return "Something went wrong"
	}
}

var validate = validator.New()

// Validate проверяет структуру по тегам validate и оборачивает ошибку в ErrValidation.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
