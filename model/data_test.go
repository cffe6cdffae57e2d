package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoRecord_PublishedAtOmittedWhenUnknown(t *testing.T) {
	rec := VideoRecord{ID: "abc", Title: "t", DurationSeconds: 42}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "published_at")

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.PublishedAt = &now
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"published_at":"2024-03-01T12:00:00Z"`)
}

func TestOutcomeConstructors(t *testing.T) {
	job := DownloadJob{VideoID: "v1", Title: "Title", URL: "https://www.youtube.com/watch?v=v1"}

	s := Skipped(job, "/out/Title.mp3")
	assert.Equal(t, OutcomeSkipped, s.Kind)
	assert.Equal(t, "/out/Title.mp3", s.Path)
	assert.Zero(t, s.Attempts)

	ok := Succeeded(job, "/out/Title.mp3", 2)
	assert.Equal(t, OutcomeSucceeded, ok.Kind)
	assert.Equal(t, 2, ok.Attempts)

	f := Failed(job, "boom", 4)
	assert.Equal(t, OutcomeFailed, f.Kind)
	assert.Equal(t, "boom", f.Reason)
	assert.Empty(t, f.Path)
}

func TestRetryState_Exhausted(t *testing.T) {
	assert.False(t, RetryState{Attempt: 3, MaxAttempts: 4}.Exhausted())
	assert.True(t, RetryState{Attempt: 4, MaxAttempts: 4}.Exhausted())
}

func TestProviderError_Unwrap(t *testing.T) {
	err := fmt.Errorf("discover: %w", &ProviderError{Provider: "ytdlp", Channel: "UC123", Err: ErrProviderFatal})

	assert.True(t, errors.Is(err, ErrProviderFatal))
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "ytdlp", pe.Provider)
	assert.Equal(t, "discover: ytdlp listing UC123: catalog provider failed", err.Error())
}
