// Package errors provides the coded error taxonomy shared by the pipeline and its job workers.
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
	// Pipeline stage outcomes
	ErrCodeStageFailed      ErrorCode = "STAGE_FAILED"
	ErrCodeFatalStageFailed ErrorCode = "FATAL_STAGE_FAILED"
	ErrCodePipelineFailed   ErrorCode = "PIPELINE_FAILED"
	ErrCodeCancelled        ErrorCode = "PIPELINE_CANCELLED"

	// External collaborators
	ErrCodeExternalServiceDegraded  ErrorCode = "EXTERNAL_SERVICE_DEGRADED"
	ErrCodeDocumentExtractionFailed ErrorCode = "DOCUMENT_EXTRACTION_FAILED"
	ErrCodeReasoningUnavailable     ErrorCode = "REASONING_UNAVAILABLE"

	// Stores
	ErrCodePersistenceFailed  ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeIndexingFailed     ErrorCode = "INDEXING_FAILED"
	ErrCodeStatusStoreFailed  ErrorCode = "STATUS_STORE_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	// Input and lifecycle
	ErrCodeInvalidApplication ErrorCode = "INVALID_APPLICATION"
	ErrCodeRunAlreadyExists   ErrorCode = "RUN_ALREADY_EXISTS"
	ErrCodeRunNotFound        ErrorCode = "RUN_NOT_FOUND"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Is matches any StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Code == e.Code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is what gets thrown back to the workflow engine.
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

// ToErrorVariables returns the variables attached to a failed or thrown job.
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

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewStageError records a recoverable failure inside a stage.
func NewStageError(stage string, err error) *StandardError {
	e := newError(ErrCodeStageFailed, fmt.Sprintf("stage %s failed", stage), err, false)
	e.Stage = stage
	return e
}

// NewFatalStageError records a stage that produced no usable output.
func NewFatalStageError(stage string, err error) *StandardError {
	e := newError(ErrCodeFatalStageFailed, fmt.Sprintf("stage %s cannot continue", stage), err, false)
	e.Stage = stage
	return e
}

// NewCancelledError marks a run aborted before the named stage started.
func NewCancelledError(nextStage string, err error) *StandardError {
	e := newError(ErrCodeCancelled, fmt.Sprintf("cancelled before stage %s", nextStage), err, false)
	e.Stage = nextStage
	return e
}

// NewPipelineFailedError is thrown to the workflow when a run ends FAILED.
func NewPipelineFailedError(stage string, errs []string) *StandardError {
	e := newError(ErrCodePipelineFailed, fmt.Sprintf("pipeline failed at stage %s", stage), nil, false)
	e.Stage = stage
	e.Details = strings.Join(errs, "; ")
	return e
}

// NewExternalServiceDegradedError marks an unavailable collaborator whose result was substituted.
func NewExternalServiceDegradedError(service string, err error) *StandardError {
	e := newError(ErrCodeExternalServiceDegraded, fmt.Sprintf("%s unavailable, using conservative defaults", service), err, true)
	e.Metadata = map[string]interface{}{"service": service}
	return e
}

func NewDocumentExtractionFailedError(documentID string, err error) *StandardError {
	e := newError(ErrCodeDocumentExtractionFailed, fmt.Sprintf("extraction failed for document %s", documentID), err, true)
	e.Metadata = map[string]interface{}{"documentId": documentID}
	return e
}

func NewReasoningUnavailableError(err error) *StandardError {
	return newError(ErrCodeReasoningUnavailable, "reasoning generator unavailable", err, true)
}

func NewPersistenceFailedError(err error) *StandardError {
	return newError(ErrCodePersistenceFailed, "failed to persist application run", err, true)
}

func NewIndexingFailedError(err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "failed to index application summary", err, true)
}

func NewStatusStoreFailedError(err error) *StandardError {
	return newError(ErrCodeStatusStoreFailed, "run status store unavailable", err, true)
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationFailed, fmt.Sprintf("failed to send %s notification", channel), err, true)
	e.Metadata = map[string]interface{}{"channel": channel}
	return e
}

func NewInvalidApplicationError(details string) *StandardError {
	e := newError(ErrCodeInvalidApplication, "application input is invalid", nil, false)
	e.Details = details
	return e
}

func NewRunAlreadyExistsError(applicationID string) *StandardError {
	e := newError(ErrCodeRunAlreadyExists, "a pipeline run already exists for this application", nil, false)
	e.Details = fmt.Sprintf("applicationId: %s", applicationID)
	return e
}

func NewRunNotFoundError(applicationID string) *StandardError {
	e := newError(ErrCodeRunNotFound, "no pipeline run recorded for this application", nil, false)
	e.Details = fmt.Sprintf("applicationId: %s", applicationID)
	return e
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "unexpected error", err, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled on the BPMN boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeStageFailed:              "STAGE_FAILED",
	ErrCodeFatalStageFailed:         "PIPELINE_FAILED",
	ErrCodePipelineFailed:           "PIPELINE_FAILED",
	ErrCodeCancelled:                "PIPELINE_FAILED",
	ErrCodeExternalServiceDegraded:  "EXTERNAL_SERVICE_DEGRADED",
	ErrCodeDocumentExtractionFailed: "DOCUMENT_EXTRACTION_FAILED",
	ErrCodeReasoningUnavailable:     "REASONING_UNAVAILABLE",
	ErrCodePersistenceFailed:        "PERSISTENCE_FAILED",
	ErrCodeIndexingFailed:           "INDEXING_FAILED",
	ErrCodeStatusStoreFailed:        "STATUS_STORE_FAILED",
	ErrCodeNotificationFailed:       "NOTIFICATION_SEND_FAILED",
	ErrCodeInvalidApplication:       "INVALID_APPLICATION",
	ErrCodeRunAlreadyExists:         "DUPLICATE_APPLICATION",
	ErrCodeRunNotFound:              "RUN_NOT_FOUND",
}

// GetRetryCount returns how many times the engine should retry a job failing with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed,
		ErrCodeStatusStoreFailed,
		ErrCodeIndexingFailed,
		ErrCodeNotificationFailed:
		return 3

	case ErrCodeExternalServiceDegraded,
		ErrCodeDocumentExtractionFailed:
		return 2

	case ErrCodeReasoningUnavailable:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError into the engine-facing form.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if stdErr.Stage != "" {
		vars["stage"] = stdErr.Stage
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err into a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STAGE") || strings.Contains(codeStr, "PIPELINE"):
		return "PIPELINE"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "REASONING") || strings.Contains(codeStr, "EXTERNAL"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "STATUS") || strings.Contains(codeStr, "INDEXING"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "RUN_"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
