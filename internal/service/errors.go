package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

type ErrorType int

const (
	ErrValidation ErrorType = iota
	ErrNotFound
	ErrStorage
	ErrPipeline
	ErrTimeout
	ErrInterrupted
	ErrOverloaded
	ErrConfig
	ErrUnknown
)

// AnalyzerError is the typed error carried across component boundaries.
// Type drives propagation policy; Context carries diagnostic key/values.
type AnalyzerError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *AnalyzerError {
	return &AnalyzerError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *AnalyzerError {
	return &AnalyzerError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *AnalyzerError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *AnalyzerError) Unwrap() error {
	return e.Cause
}

func (e *AnalyzerError) WithContext(key string, value any) *AnalyzerError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrValidation:
		return "ValidationError"
	case ErrNotFound:
		return "NotFoundError"
	case ErrStorage:
		return "StorageError"
	case ErrPipeline:
		return "PipelineError"
	case ErrTimeout:
		return "TimeoutError"
	case ErrInterrupted:
		return "Interrupted"
	case ErrOverloaded:
		return "Overloaded"
	case ErrConfig:
		return "ConfigError"
	case ErrUnknown:
		return "Unknown"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var analyzerErr *AnalyzerError
	if errors.As(err, &analyzerErr) {
		return analyzerErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *AnalyzerError {
	return NewErrorWithCause(errorType, message, err)
}

func Must(err error, message string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", message, err))
	}
}

// SafeExecute runs fn and converts a panic into an error instead of
// letting it unwind the calling goroutine.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}

type ErrorHandler interface {
	Handle(err error) bool
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	analyzerErr, ok := err.(*AnalyzerError)
	if !ok {
		log.Error("Unknown Error: %v", err)
		return false
	}

	log.Error("Error Detail: %v", analyzerErr)
	return true
}
