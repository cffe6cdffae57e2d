package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
	"github.com/tomyanzhiyuan/ytmp3-scraper/state"
)

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name          string
		videoType     string
		timeFrame     string
		want          model.FilterCriteria
		expectError   bool
		errorContains string
	}{
		{
			name:      "defaults",
			videoType: "all",
			timeFrame: "all",
			want:      model.FilterCriteria{VideoType: model.VideoTypeAll, TimeFrame: model.TimeFrameAll},
		},
		{
			name:      "shorts last week, mixed case",
			videoType: "Shorts",
			timeFrame: "WEEK",
			want:      model.FilterCriteria{VideoType: model.VideoTypeShortsOnly, TimeFrame: model.TimeFrameLastWeek},
		},
		{
			name:      "long videos last year",
			videoType: "videos",
			timeFrame: "year",
			want:      model.FilterCriteria{VideoType: model.VideoTypeLongOnly, TimeFrame: model.TimeFrameLastYear},
		},
		{
			name:          "unknown type",
			videoType:     "clips",
			timeFrame:     "all",
			expectError:   true,
			errorContains: "invalid type 'clips'",
		},
		{
			name:          "unknown timeframe",
			videoType:     "all",
			timeFrame:     "decade",
			expectError:   true,
			errorContains: "invalid timeframe 'decade'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCriteria(tt.videoType, tt.timeFrame)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectReferences(t *testing.T) {
	file := filepath.Join(t.TempDir(), "refs.txt")
	require.NoError(t, os.WriteFile(file, []byte("@one\n\n https://www.youtube.com/@two \n"), 0o644))

	refs, err := collectReferences([]string{"@zero"}, file)
	require.NoError(t, err)
	assert.Equal(t, []string{"@zero", "@one", "https://www.youtube.com/@two"}, refs)

	_, err = collectReferences(nil, "")
	assert.Error(t, err)

	_, err = collectReferences(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPrintRecords(t *testing.T) {
	published := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	snap := state.DiscoverySnapshot{
		Channel: &model.ChannelIdentity{ID: "UC1", DisplayName: "Chan"},
		Result: []model.VideoRecord{
			{ID: "v1", Title: "Long one", DurationSeconds: 3725, PublishedAt: &published},
			{ID: "v2", Title: "Short one", DurationSeconds: 30, IsShort: true},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printRecords(&buf, snap, false))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Chan (UC1): 2 videos\n"))
	assert.Contains(t, out, "PT1H2M5S")
	assert.Contains(t, out, "2024-05-01")
	assert.Contains(t, out, "Short one")

	buf.Reset()
	require.NoError(t, printRecords(&buf, snap, true))
	assert.Contains(t, buf.String(), `"display_name": "Chan"`)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["discover"])
	assert.True(t, names["download"])
	assert.True(t, names["files"])
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}
