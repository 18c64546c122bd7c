package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentLength - максимальная длина комментария в символах.
const MaxContentLength = 500

var (
	ErrNetwork         = errors.New("network error")
	ErrValidation      = errors.New("validation error")
	ErrForbidden       = errors.New("not authorized")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("no authenticated user")
)

// NormalizeContent обрезает пробелы и проверяет длину текста комментария.
func NormalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("%w: comment content cannot be empty", ErrValidation)
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", fmt.Errorf("%w: comment content is too long", ErrValidation)
	}
	return trimmed, nil
}
