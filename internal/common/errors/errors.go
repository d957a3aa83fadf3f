// Package errors provides the pipeline error taxonomy and its mapping onto
// BPMN errors for the job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Pipeline errors. Each one is terminal for the current operation.
	ErrCodeTransport              ErrorCode = "TRANSPORT_ERROR"
	ErrCodeBackendReported        ErrorCode = "BACKEND_REPORTED_ERROR"
	ErrCodeEmptyResult            ErrorCode = "EMPTY_RESULT"
	ErrCodePartialData            ErrorCode = "PARTIAL_DATA"
	ErrCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrCodeDuplicateRun           ErrorCode = "DUPLICATE_RUN"
	ErrCodeConversationIncomplete ErrorCode = "CONVERSATION_INCOMPLETE"
	ErrCodeConversationNotFound   ErrorCode = "CONVERSATION_NOT_FOUND"

	// Infrastructure errors raised by side channels.
	ErrCodeSessionStoreFailed            ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed          ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexFailed                   ErrorCode = "INDEX_FAILED"
	ErrCodeExportFailed                  ErrorCode = "EXPORT_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Status    int                    `json:"status,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is reports a match when target is a StandardError with the same code, so
// callers can compare against the sentinel values below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrTransport              = &StandardError{Code: ErrCodeTransport}
	ErrBackendReported        = &StandardError{Code: ErrCodeBackendReported}
	ErrEmptyResult            = &StandardError{Code: ErrCodeEmptyResult}
	ErrPartialData            = &StandardError{Code: ErrCodePartialData}
	ErrValidation             = &StandardError{Code: ErrCodeValidationFailed}
	ErrDuplicateRun           = &StandardError{Code: ErrCodeDuplicateRun}
	ErrConversationIncomplete = &StandardError{Code: ErrCodeConversationIncomplete}
	ErrConversationNotFound   = &StandardError{Code: ErrCodeConversationNotFound}
)

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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a network failure. The message follows the
// "Network error: ..." form shown to users.
func NewTransportError(err error) *StandardError {
	e := newError(ErrCodeTransport, "Network error: "+err.Error(), "", false)
	e.Cause = err
	return e
}

// NewHTTPStatusError describes a non-2xx response. body is the response text;
// when empty the message falls back to "HTTP <status>".
func NewHTTPStatusError(status int, body string) *StandardError {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	e := newError(ErrCodeTransport, msg, "", false)
	e.Status = status
	return e
}

// NewBackendReportedError carries the backend's own error text verbatim.
func NewBackendReportedError(operation, backendMessage string) *StandardError {
	if backendMessage == "" {
		backendMessage = fmt.Sprintf("%s failed", operation)
	}
	return newError(ErrCodeBackendReported, backendMessage, operation, false)
}

// NewMalformedResponseError reports a 2xx reply whose body did not decode.
// The service was reachable, so it is classed as a backend-reported failure.
func NewMalformedResponseError(endpoint string, err error) *StandardError {
	e := newError(ErrCodeBackendReported, "The search service returned a response that could not be read", endpoint+": "+err.Error(), false)
	e.Cause = err
	return e
}

func NewEmptyResultError(message string) *StandardError {
	return newError(ErrCodeEmptyResult, message, "", false)
}

// NewPartialDataError records that companies were found but lead search failed.
func NewPartialDataError(companiesFound int, cause error) *StandardError {
	e := newError(ErrCodePartialData,
		fmt.Sprintf("Found %d companies but lead search failed", companiesFound),
		causeText(cause), false)
	e.Cause = cause
	return e.WithMetadata("companiesFound", companiesFound)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Invalid input", details, false)
}

func NewDuplicateRunError(sessionID string) *StandardError {
	return newError(ErrCodeDuplicateRun, "A pipeline run is already in progress or finished for this session",
		fmt.Sprintf("sessionId: %s", sessionID), false)
}

func NewConversationIncompleteError(conversationID string) *StandardError {
	return newError(ErrCodeConversationIncomplete, "The ICP conversation has not produced a configuration yet",
		fmt.Sprintf("conversationId: %s", conversationID), false)
}

func NewConversationNotFoundError(conversationID string) *StandardError {
	return newError(ErrCodeConversationNotFound, "Conversation not found",
		fmt.Sprintf("conversationId: %s", conversationID), false)
}

// NewSessionStoreError creates a retryable redis error.
func NewSessionStoreError(err error) *StandardError {
	e := newError(ErrCodeSessionStoreFailed, "Session store error", err.Error(), true)
	e.Cause = err
	return e
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	e := newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
	e.Cause = err
	return e
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	e := newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
	e.Cause = err
	return e
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	e := newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
	e.Cause = err
	return e
}

func NewIndexFailedError(index string, details string) *StandardError {
	return newError(ErrCodeIndexFailed, "Indexing results failed",
		fmt.Sprintf("index: %s, error: %s", index, details), true)
}

func NewExportFailedError(err error) *StandardError {
	e := newError(ErrCodeExportFailed, "CSV export failed", err.Error(), false)
	e.Cause = err
	return e
}

func NewInternalError(err error) *StandardError {
	e := newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
	e.Cause = err
	return e
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Inspection helpers
// ==========================

// AsStandard unwraps err to a *StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in the chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func IsTransport(err error) bool       { return stderrors.Is(err, ErrTransport) }
func IsBackendReported(err error) bool { return stderrors.Is(err, ErrBackendReported) }
func IsEmptyResult(err error) bool     { return stderrors.Is(err, ErrEmptyResult) }
func IsPartialData(err error) bool     { return stderrors.Is(err, ErrPartialData) }
func IsValidation(err error) bool      { return stderrors.Is(err, ErrValidation) }
func IsDuplicateRun(err error) bool    { return stderrors.Is(err, ErrDuplicateRun) }

// UserMessage renders err as the text shown to the person driving the
// pipeline. Backend-reported errors are passed through verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr, ok := AsStandard(err)
	if !ok {
		return "Something went wrong: " + err.Error()
	}

	switch stdErr.Code {
	case ErrCodeTransport:
		return "Could not reach the search service. " + stdErr.Message
	case ErrCodeBackendReported:
		return stdErr.Message
	case ErrCodeEmptyResult:
		return stdErr.Message
	case ErrCodePartialData:
		return stdErr.Message + ". Company results are still available."
	case ErrCodeValidationFailed:
		return stdErr.Details
	case ErrCodeDuplicateRun:
		return "This session has already been processed."
	case ErrCodeConversationIncomplete:
		return "Please finish describing your ideal customer before searching."
	case ErrCodeConversationNotFound:
		return "That conversation no longer exists. Please start a new one."
	default:
		return "Something went wrong: " + stdErr.Message
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the job retry budget for an error code. Pipeline
// errors are never retried; only infrastructure side channels are.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSessionStoreFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"userMessage":       UserMessage(stdErr),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stdErr.Status != 0 {
		vars["httpStatus"] = stdErr.Status
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeTransport || code == ErrCodeBackendReported:
		return "BACKEND"
	case code == ErrCodeEmptyResult || code == ErrCodePartialData:
		return "RESULT"
	case strings.Contains(codeStr, "CONVERSATION"):
		return "CONVERSATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "SESSION"):
		return "STORAGE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH_INDEX"
	case strings.Contains(codeStr, "VALIDATION") || code == ErrCodeDuplicateRun:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
