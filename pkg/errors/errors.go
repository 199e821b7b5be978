package errors

import (
	stderrors "errors"
	"net/http"
	"time"
)

// Kind classifies an AppError so callers can decide between stale cache, an
// empty state or an error banner.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindUpstream
	KindRateLimited
	KindBadRequest
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindUpstream:
		return "upstream"
	case KindRateLimited:
		return "rate_limited"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type AppError struct {
	Code       int           `json:"code"`
	Message    string        `json:"message"`
	Kind       Kind          `json:"-"`
	StatusCode int           `json:"-"`
	ResetIn    time.Duration `json:"-"`
	Err        error         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// Predefined errors
var (
	ErrMissingAPIKey = &AppError{
		Code:       500,
		Message:    "UPTIMEROBOT_API_KEY is not configured",
		Kind:       KindConfig,
		StatusCode: http.StatusInternalServerError,
	}
	ErrNotFound = &AppError{
		Code:       404,
		Message:    "Resource not found",
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
	}
	ErrBadRequest = &AppError{
		Code:       400,
		Message:    "Bad request",
		Kind:       KindBadRequest,
		StatusCode: http.StatusBadRequest,
	}
	ErrInternalServer = &AppError{
		Code:       500,
		Message:    "Internal server error",
		Kind:       KindInternal,
		StatusCode: http.StatusInternalServerError,
	}
)

func New(code int, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       500,
		Message:    message,
		Kind:       KindInternal,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// Upstream reports a non-2xx answer or an error payload from the monitoring API.
func Upstream(message string, err error) *AppError {
	return &AppError{
		Code:       502,
		Message:    message,
		Kind:       KindUpstream,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// RateLimited carries the time until the quota window frees a slot.
func RateLimited(message string, resetIn time.Duration) *AppError {
	if resetIn < 0 {
		resetIn = 0
	}
	return &AppError{
		Code:       429,
		Message:    message,
		Kind:       KindRateLimited,
		StatusCode: http.StatusTooManyRequests,
		ResetIn:    resetIn,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:       400,
		Message:    message,
		Kind:       KindBadRequest,
		StatusCode: http.StatusBadRequest,
	}
}

// As returns the AppError in err's chain, or wraps err as an internal error.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "Internal server error")
}

func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func IsConfig(err error) bool {
	return KindOf(err) == KindConfig
}

func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}
