package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an expected failure of a domain operation. Callers branch on
// the sentinel values below with errors.Is, or on Code for broad handling.
type AppError struct {
	Code    Code   `json:"code"`
	Domain  string `json:"domain"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s (%v)", e.Domain, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Domain, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code Code, domain, message string) *AppError {
	return &AppError{Code: code, Domain: domain, Message: message}
}

// Wrap attaches cause to a copy of the sentinel so that both errors.Is(err, sentinel)
// and errors.Is(err, cause) hold.
func Wrap(sentinel *AppError, cause error) error {
	return &wrapped{AppError: sentinel, cause: cause}
}

type wrapped struct {
	*AppError
	cause error
}

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %v", w.AppError.Error(), w.cause)
}

func (w *wrapped) Unwrap() []error {
	return []error{w.AppError, w.cause}
}

func Upstream(domain string, err error) error {
	return &AppError{Code: CodeUpstream, Domain: domain, Message: "upstream call failed", Err: err}
}

func Internal(domain string, err error) error {
	return &AppError{Code: CodeInternal, Domain: domain, Message: "internal error", Err: err}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeLimitExceeded:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message of the first AppError in err's chain plus the
// cause attached by Wrap. Errors outside the taxonomy yield their own text.
func PublicMessage(err error) string {
	var w *wrapped
	if errors.As(err, &w) && w.cause != nil {
		return w.Message + ": " + w.cause.Error()
	}
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
