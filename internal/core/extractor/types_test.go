package extractor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyView(t *testing.T) {
	tests := []struct {
		name     string
		result   *StreamResult
		expected map[string]string
	}{
		{
			name: "Playlist and poster",
			result: &StreamResult{
				URLs:      map[Format]string{FormatM3U8: "X"},
				PosterURL: "P",
			},
			expected: map[string]string{"m3u8": "X", "poster_url": "P"},
		},
		{
			name: "Blob only",
			result: &StreamResult{
				URLs:    map[Format]string{},
				BlobURL: "blob:x",
			},
			expected: map[string]string{"blob_url": "blob:x"},
		},
		{
			name: "All formats",
			result: &StreamResult{
				URLs: map[Format]string{FormatM3U8: "a", FormatMP4: "b", FormatWebM: "c"},
			},
			expected: map[string]string{"m3u8": "a", "mp4": "b", "webm": "c"},
		},
		{
			name:   "Sources only flatten to nothing",
			result: &StreamResult{Sources: []Source{{URL: "https://cdn.test/x"}}},
		},
		{
			name: "Nil result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.LegacyView())
		})
	}
}

func TestFormatsSorted(t *testing.T) {
	r := &StreamResult{URLs: map[Format]string{FormatWebM: "c", FormatM3U8: "a", FormatMP4: "b"}}
	assert.Equal(t, []Format{FormatM3U8, FormatMP4, FormatWebM}, r.Formats())
}

func TestAssembleKeepsNameVerbatim(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := assemble(newResult(), "  Spark ", now)
	assert.Equal(t, "  Spark ", r.ChannelName)
	assert.Equal(t, now, r.ExtractedAt)
}

func TestStreamResultJSON(t *testing.T) {
	r := assemble(&StreamResult{
		URLs:      map[Format]string{FormatM3U8: "https://s/x.m3u8"},
		PosterURL: "https://s/p.jpg",
	}, "Spark", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"urls": {"m3u8": "https://s/x.m3u8"},
		"poster_url": "https://s/p.jpg",
		"channel_name": "Spark",
		"extracted_at": "2024-01-02T03:04:05Z"
	}`, string(data))
}
