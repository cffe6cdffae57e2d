package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
	}{
		{StatusPending, StatusSkipped},
		{StatusPending, StatusDownloading},
		{StatusDownloading, StatusSucceeded},
		{StatusDownloading, StatusRateLimitedWait},
		{StatusDownloading, StatusFailed},
		{StatusRateLimitedWait, StatusDownloading},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from JobStatus
		to   JobStatus
	}{
		{StatusPending, StatusSucceeded},
		{StatusSkipped, StatusDownloading},
		{StatusSucceeded, StatusDownloading},
		{StatusFailed, StatusDownloading},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusSkipped.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRateLimitedWait.IsTerminal())
	assert.False(t, JobStatus("bogus").IsTerminal())
}

func TestJobState_Transition(t *testing.T) {
	st := NewJobState(DownloadJob{VideoID: "vid-1"})
	require.NoError(t, st.Transition(StatusDownloading))
	require.NoError(t, st.Transition(StatusRateLimitedWait))
	require.NoError(t, st.Transition(StatusDownloading))
	require.NoError(t, st.Transition(StatusSucceeded))

	err := st.Transition(StatusDownloading)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vid-1")
	assert.Equal(t, StatusSucceeded, st.Status)
}

func TestFilterCriteria(t *testing.T) {
	c := FilterCriteria{VideoType: "bogus", TimeFrame: ""}.Normalize()
	assert.Equal(t, VideoTypeAll, c.VideoType)
	assert.Equal(t, TimeFrameAll, c.TimeFrame)

	assert.True(t, FilterCriteria{VideoType: VideoTypeAll}.Accepts(true))
	assert.True(t, FilterCriteria{VideoType: VideoTypeAll}.Accepts(false))
	assert.True(t, FilterCriteria{VideoType: VideoTypeShortsOnly}.Accepts(true))
	assert.False(t, FilterCriteria{VideoType: VideoTypeShortsOnly}.Accepts(false))
	assert.True(t, FilterCriteria{VideoType: VideoTypeLongOnly}.Accepts(false))
	assert.False(t, FilterCriteria{VideoType: VideoTypeLongOnly}.Accepts(true))
}

func TestOutputFormatExtension(t *testing.T) {
	assert.Equal(t, "mp3", FormatAudio.Extension())
	assert.Equal(t, "mp4", FormatVideo.Extension())
	assert.Equal(t, "mp3", OutputFormat("").Extension())
}
