// Package errors defines the application error taxonomy and its central handler.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation  = "E100"
	CodeInternal    = "E200"
	CodeExternalAPI = "E300"
	CodeState       = "E400"
	CodeRateLimit   = "E500"
	CodeUpload      = "E600"
	CodeBusy        = "E700"
)

const defaultUserMessage = "⚠️ Something went wrong. Please try again later."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewInternalError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeInternal,
		Message:     fmt.Sprintf("Internal error: %s", underlyingMsg),
		UserMessage: defaultUserMessage,
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	msg := fmt.Sprintf("External API error: %s", apiName)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}

	return &AppError{
		Code:        CodeExternalAPI,
		Message:     msg,
		UserMessage: "The data source is temporarily unavailable. Please try again later.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "That action is not available right now. Use /menu to start over.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewUploadError describes a failed artifact upload. Throttling responses are retryable.
func NewUploadError(name string, cause error, retryable bool) *AppError {
	return &AppError{
		Code:        CodeUpload,
		Message:     fmt.Sprintf("Upload of %s failed: %v", name, cause),
		UserMessage: fmt.Sprintf("❌ Failed to send %s.", name),
		Severity:    SeverityMedium,
		Retryable:   retryable,
		cause:       cause,
	}
}

func NewBusyError(cause error) *AppError {
	return &AppError{
		Code:        CodeBusy,
		Message:     fmt.Sprintf("Worker pool unavailable: %v", cause),
		UserMessage: "⏳ The bot is busy right now. Please try again in a minute.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}
