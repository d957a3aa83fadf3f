package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPStatusError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "body text is used", status: 500, body: "upstream exploded\n", wantMsg: "upstream exploded"},
		{name: "empty body falls back to status", status: 502, body: "", wantMsg: "HTTP 502"},
		{name: "whitespace body falls back to status", status: 404, body: "   ", wantMsg: "HTTP 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHTTPStatusError(tt.status, tt.body)
			assert.Equal(t, ErrCodeTransport, err.Code)
			assert.Equal(t, tt.wantMsg, err.Message)
			assert.Equal(t, tt.status, err.Status)
			assert.False(t, err.Retryable)
		})
	}
}

func TestErrorsIs_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("search companies: %w", NewEmptyResultError("No companies found matching your criteria"))

	assert.True(t, IsEmptyResult(wrapped))
	assert.False(t, IsTransport(wrapped))
	assert.False(t, IsBackendReported(wrapped))
	assert.Equal(t, ErrCodeEmptyResult, CodeOf(wrapped))
}

func TestTransportError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewTransportError(cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "Network error: connection refused", err.Message)
}

func TestUserMessage_DistinctPerKind(t *testing.T) {
	msgs := map[string]string{
		"transport": UserMessage(NewHTTPStatusError(500, "boom")),
		"backend":   UserMessage(NewBackendReportedError("search companies", "No companies found")),
		"empty":     UserMessage(NewEmptyResultError("No leads found for these companies")),
		"partial":   UserMessage(NewPartialDataError(3, stderrors.New("timeout"))),
	}

	seen := map[string]string{}
	for kind, msg := range msgs {
		require.NotEmpty(t, msg, kind)
		if other, dup := seen[msg]; dup {
			t.Fatalf("%s and %s share the message %q", kind, other, msg)
		}
		seen[msg] = kind
	}

	assert.Equal(t, "No companies found", msgs["backend"])
	assert.Contains(t, msgs["partial"], "Found 3 companies")
}

func TestUserMessage_PlainError(t *testing.T) {
	assert.Equal(t, "Something went wrong: oops", UserMessage(stderrors.New("oops")))
	assert.Equal(t, "", UserMessage(nil))
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("pipeline errors are never retried", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewHTTPStatusError(503, ""))
		assert.Equal(t, "TRANSPORT_ERROR", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
		assert.Equal(t, 503, bpmn.ErrorVariables["httpStatus"])
	})

	t.Run("storage errors keep a retry budget", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewSessionStoreError(stderrors.New("redis down")))
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("metadata is copied to variables", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewPartialDataError(4, stderrors.New("x")))
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, 4, vars["companiesFound"])
		assert.Equal(t, "PARTIAL_DATA", vars["errorCode"])
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "BACKEND", GetErrorCategory(ErrCodeTransport))
	assert.Equal(t, "RESULT", GetErrorCategory(ErrCodePartialData))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeSessionStoreFailed))
	assert.Equal(t, "SEARCH_INDEX", GetErrorCategory(ErrCodeIndexFailed))
	assert.Equal(t, "CONVERSATION", GetErrorCategory(ErrCodeConversationIncomplete))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeDuplicateRun))
}
