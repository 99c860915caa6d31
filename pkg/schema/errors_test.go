package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NotFound("workflow", "wf-1")
	assert.Equal(t, `[NOT_FOUND] workflow "wf-1" not found`, err.Error())
	assert.Equal(t, "workflow", err.Details["kind"])
}

func TestError_CodeThroughWrapping(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("start run: %w",
		NewError(ErrCodeStoreUnavailable, "store busy").WithCause(cause))

	assert.Equal(t, ErrCodeStoreUnavailable, CodeOf(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
}

func TestError_OnlyStoreUnavailableIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(NotFound("run", "r")))
	assert.False(t, IsRetryable(NewError(ErrCodeInvalidPrecondition, "empty workflow")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestParseStepStatus(t *testing.T) {
	cases := map[string]StepStatus{
		"todo":        StepStatusTodo,
		"TODO":        StepStatusTodo,
		"in-progress": StepStatusInProgress,
		"IN_PROGRESS": StepStatusInProgress,
		" done ":      StepStatusDone,
	}
	for in, want := range cases {
		got, err := ParseStepStatus(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStepStatus("finished")
	assert.True(t, IsCode(err, ErrCodeValidation))
}

func TestParseAgentKind(t *testing.T) {
	k, err := ParseAgentKind("ai")
	assert.NoError(t, err)
	assert.Equal(t, AgentKindAutomated, k)

	_, err = ParseAgentKind("robot")
	assert.Error(t, err)
}

func TestParseRunStatus(t *testing.T) {
	s, err := ParseRunStatus("COMPLETED")
	assert.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, s)

	_, err = ParseRunStatus("failed")
	assert.Error(t, err)
}
