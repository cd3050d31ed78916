// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "persistence is retried",
			err:         NewPersistenceFailedError(fmt.Errorf("connection refused")),
			wantCode:    "PERSISTENCE_FAILED",
			wantRetries: 3,
		},
		{
			name:        "fatal stage maps onto pipeline failure",
			err:         NewFatalStageError("document_processing", fmt.Errorf("no documents processed")),
			wantCode:    "PIPELINE_FAILED",
			wantRetries: 0,
		},
		{
			name:        "duplicate run",
			err:         NewRunAlreadyExistsError("APP-1"),
			wantCode:    "DUPLICATE_APPLICATION",
			wantRetries: 0,
		},
		{
			name:        "unknown code falls through",
			err:         &StandardError{Code: "SOMETHING_ELSE", Message: "x"},
			wantCode:    "SOMETHING_ELSE",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ToErrorVariables()["originalErrorCode"])
		})
	}
}

func TestStageErrorCarriesStage(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewStageError("validation", cause)

	assert.Equal(t, "validation", err.Stage)
	assert.Contains(t, err.Error(), "STAGE_FAILED[validation]")
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "validation", ConvertToBPMNError(err).ToErrorVariables()["stage"])
}

func TestAsStandard(t *testing.T) {
	assert.Nil(t, AsStandard(nil))

	wrapped := fmt.Errorf("outer: %w", NewRunNotFoundError("APP-9"))
	std := AsStandard(wrapped)
	require.NotNil(t, std)
	assert.Equal(t, ErrCodeRunNotFound, std.Code)
	assert.True(t, HasCode(wrapped, ErrCodeRunNotFound))

	plain := AsStandard(fmt.Errorf("plain"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "plain", plain.Details)
}

func TestIsMatchesByCode(t *testing.T) {
	a := NewStatusStoreFailedError(fmt.Errorf("a"))
	b := &StandardError{Code: ErrCodeStatusStoreFailed}
	assert.True(t, stderrors.Is(fmt.Errorf("wrap: %w", a), b))
	assert.False(t, stderrors.Is(a, &StandardError{Code: ErrCodeInternal}))
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeStageFailed, "PIPELINE"},
		{ErrCodeCancelled, "PIPELINE"},
		{ErrCodeReasoningUnavailable, "EXTERNAL"},
		{ErrCodeStatusStoreFailed, "STORAGE"},
		{ErrCodeNotificationFailed, "NOTIFICATION"},
		{ErrCodeInvalidApplication, "VALIDATION"},
		{ErrCodeInternal, "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}
