// Package errors provides the service-wide error taxonomy and its mapping to
// HTTP statuses and BPMN errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Workflow errors
const (
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeConflict              ErrorCode = "CONFLICT"
	ErrCodeInvalidArgument       ErrorCode = "INVALID_ARGUMENT"
	ErrCodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrCodeChannelDeliveryFailed ErrorCode = "CHANNEL_DELIVERY_FAILED"
	ErrCodeStoreFailure          ErrorCode = "STORE_FAILURE"
)

// Infrastructure errors
const (
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInputParsing     ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseConnect  ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a diagnostic key/value and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNotFoundError reports a missing user, request or notification.
func NewNotFoundError(resource, id string) *StandardError {
	return newError(ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource),
		fmt.Sprintf("%s: %s", resource, id),
		false, nil)
}

// NewConflictError reports a duplicate active request or a transition out of a terminal state.
func NewConflictError(message, details string) *StandardError {
	return newError(ErrCodeConflict, message, details, false, nil)
}

func NewInvalidArgumentError(details string) *StandardError {
	return newError(ErrCodeInvalidArgument, "Invalid argument", details, false, nil)
}

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Caller is not allowed to perform this action", details, false, nil)
}

// NewChannelDeliveryError wraps a failed send on a single notification channel.
func NewChannelDeliveryError(channel string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeChannelDeliveryFailed,
		fmt.Sprintf("Delivery on channel '%s' failed", channel),
		details, true, err).
		WithMetadata("channel", channel)
}

// NewStoreFailureError wraps a failed durable write or read.
func NewStoreFailureError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreFailure,
		fmt.Sprintf("Store operation '%s' failed", operation),
		err.Error(), true, err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnect, "Database connection error", err.Error(), true, err)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService,
		fmt.Sprintf("External service '%s' error", service),
		err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout,
		fmt.Sprintf("Service '%s' timeout", service),
		err.Error(), true, err)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsing, "Failed to parse job variables", err.Error(), false, err)
}

func NewTemplateNotFoundError(templateID string) *StandardError {
	return newError(ErrCodeTemplateNotFound,
		"Template not found in registry",
		fmt.Sprintf("templateId: %s", templateID),
		false, nil)
}

// ==========================
// 4. Inspection
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// HTTPStatus maps an error code to the status returned by the HTTP surface.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInvalidArgument, ErrCodeInputParsing:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes modelled on
// BPMN boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotFound:              "ACCESS_REQUEST_NOT_FOUND",
	ErrCodeConflict:              "ACCESS_REQUEST_CONFLICT",
	ErrCodeInvalidArgument:       "ACCESS_REQUEST_INVALID",
	ErrCodeUnauthorized:          "ACCESS_REQUEST_FORBIDDEN",
	ErrCodeStoreFailure:          "STORE_FAILURE",
	ErrCodeChannelDeliveryFailed: "CHANNEL_DELIVERY_FAILED",
	ErrCodeInputParsing:          "INPUT_PARSING_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreFailure,
		ErrCodeDatabaseConnect,
		ErrCodeExternalService:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeNotFound || code == ErrCodeConflict || code == ErrCodeUnauthorized:
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "CHANNEL") || strings.Contains(codeStr, "TEMPLATE"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}
