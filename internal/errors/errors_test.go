package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := errors.New("disk on fire")

	// When: wrapping it
	err := New(ErrCodeStorage, "insert failed", cause)

	// Then: the cause is reachable through the chain
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestMatchError_Error_Format(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"with message", ErrCodeIndexNotFound, "jobs.ids missing", "[ERR_203_INDEX_NOT_FOUND] jobs.ids missing"},
		{"code only", ErrCodeEmptyInput, "", "[ERR_403_EMPTY_INPUT]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestMatchError_Is_MatchesSentinelByCode(t *testing.T) {
	// Given: an error wrapped twice with fmt.Errorf
	inner := Newf(ErrCodeIndexNotReady, "no index for %s", "jobs")
	wrapped := fmt.Errorf("match: %w", inner)

	// Then: errors.Is finds the sentinel
	assert.True(t, errors.Is(wrapped, ErrIndexNotReady))
	assert.False(t, errors.Is(wrapped, ErrIndexNotFound))
}

func TestSeverity_DerivedFromCode(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeModelUnavailable, "no model", nil)))
	assert.False(t, IsFatal(New(ErrCodeIndexNotReady, "later", nil)))
	assert.Equal(t, SeverityWarning, New(ErrCodeEmptyInput, "", nil).Severity)
	assert.Equal(t, SeverityError, New(ErrCodeDimensionMismatch, "", nil).Severity)
}

func TestCategoryFromCode(t *testing.T) {
	assert.Equal(t, CategoryConfig, GetCategory(New(ErrCodeConfigInvalid, "", nil)))
	assert.Equal(t, CategoryStorage, GetCategory(New(ErrCodeIndexNotFound, "", nil)))
	assert.Equal(t, CategoryModel, GetCategory(New(ErrCodeModelUnavailable, "", nil)))
	assert.Equal(t, CategoryValidation, GetCategory(New(ErrCodeDimensionMismatch, "", nil)))
	assert.Equal(t, CategoryInternal, categoryFromCode("bad"))
}

func TestGetCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeDimensionMismatch, "384 vs 768", nil))
	assert.Equal(t, ErrCodeDimensionMismatch, GetCode(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStorage, nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeIndexNotReady, "index for jobs is not built", nil).
		WithSuggestion("run 'resumatch rebuild jobs'")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: index for jobs is not built")
	assert.Contains(t, out, "Hint: run 'resumatch rebuild jobs'")
	assert.Contains(t, out, "Code: ERR_204_INDEX_NOT_READY")
}

func TestFormatForCLI_PlainErrorIsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))
	assert.Contains(t, out, ErrCodeInternal)
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestFormatJSON_Fields(t *testing.T) {
	err := New(ErrCodeStorage, "insert failed", errors.New("locked")).WithDetail("kind", "jobs")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeStorage, decoded["code"])
	assert.Equal(t, "locked", decoded["cause"])
	assert.Equal(t, "STORAGE", decoded["category"])
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(New(ErrCodeStorage, "x", nil).WithDetail("id", "7"))
	assert.Contains(t, attrs, "detail_id")
	assert.Nil(t, LogAttrs(nil))
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	// Given: a function failing twice with a retryable error
	calls := 0
	fn := func() (int, error) {
		calls++
		if calls < 3 {
			return 0, New(ErrCodeNetworkTimeout, "slow", nil)
		}
		return 42, nil
	}
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	// When: retrying
	got, err := Retry(context.Background(), cfg, fn)

	// Then: the third attempt wins
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxRetries: 5, InitialDelay: time.Millisecond, Multiplier: 2},
		func() (int, error) {
			calls++
			return 0, New(ErrCodeModelUnavailable, "no model", nil)
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
		func() (string, error) {
			calls++
			return "", errors.New("flaky")
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, DefaultRetryConfig(), func() (int, error) { return 1, nil })

	assert.ErrorIs(t, err, context.Canceled)
}
