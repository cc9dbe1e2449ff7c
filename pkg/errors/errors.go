package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnknownAlphabet = errors.New("unknown alphabet")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrConfig          = errors.New("invalid registry configuration")
	ErrOverflow        = errors.New("arithmetic overflow")
	ErrRecursionLimit  = errors.New("name expansion recursion limit exceeded")
	ErrIndexWrite      = errors.New("index checkpoint write failed")
	ErrPhraseNotFound  = errors.New("phrase not found")
	ErrLetterNotFound  = errors.New("character not in alphabet")
	ErrInvalidInput    = errors.New("invalid input")
	ErrBaselineSource  = errors.New("baseline source unavailable")
	ErrInternal        = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownAlphabet), errors.Is(err, ErrUnknownMethod), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrPhraseNotFound), errors.Is(err, ErrLetterNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOverflow), errors.Is(err, ErrRecursionLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexWrite), errors.Is(err, ErrBaselineSource):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
