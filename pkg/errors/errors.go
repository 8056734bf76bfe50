package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeUpstream represents failures of an external collaborator
	// (search, browser, LLM, storage, visual search).
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeMalformed represents unparseable or incomplete upstream responses
	ErrorTypeMalformed ErrorType = "malformed"
	// ErrorTypeValidation represents client input errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeResourceLimit represents oversized or otherwise rejected uploads
	ErrorTypeResourceLimit ErrorType = "resource_limit"
	// ErrorTypeEmptyStage represents a pipeline stage that produced nothing
	ErrorTypeEmptyStage ErrorType = "empty_stage"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Error is the typed error carried across the service.
type Error struct {
	Type    ErrorType
	Stage   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether the failure only costs the current work item.
func (e *Error) IsRecoverable() bool {
	switch e.Type {
	case ErrorTypeUpstream, ErrorTypeMalformed, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// HTTPStatus maps the error type onto a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeResourceLimit:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeUpstream, ErrorTypeMalformed:
		return http.StatusBadGateway
	case ErrorTypeEmptyStage:
		if e.Stage == StageExtract {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Pipeline stage names used in Error.Stage.
const (
	StageDiscover = "discover"
	StageFetch    = "fetch"
	StageExtract  = "extract"
	StageUpload   = "upload"
	StageImage    = "image"
	StageSearch   = "visual_search"
)

// New creates a new Error
func New(errType ErrorType, stage, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Stage:   stage,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewUpstream creates a new upstream error
func NewUpstream(stage, message string, err error) *Error {
	return New(ErrorTypeUpstream, stage, message, err)
}

// NewMalformed creates a new malformed-response error
func NewMalformed(stage, message string, err error) *Error {
	return New(ErrorTypeMalformed, stage, message, err)
}

// NewValidation creates a new validation error
func NewValidation(stage, message string) *Error {
	return New(ErrorTypeValidation, stage, message, nil)
}

// NewResourceLimit creates a new resource limit error
func NewResourceLimit(stage, message string) *Error {
	return New(ErrorTypeResourceLimit, stage, message, nil)
}

// NewEmptyStage creates the error reported when a whole stage yields nothing
func NewEmptyStage(stage, message string) *Error {
	return New(ErrorTypeEmptyStage, stage, message, nil)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(stage string, duration time.Duration) *Error {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, stage, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *Error {
	return New(ErrorTypeConfiguration, "", message, err)
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// TypeOf returns a label for err suitable for metrics.
func TypeOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return string(e.Type)
	}
	return "unknown"
}

// IsType reports whether err carries the given type.
func IsType(err error, errType ErrorType) bool {
	e, ok := As(err)
	return ok && e.Type == errType
}
