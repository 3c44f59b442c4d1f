package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestExplain(t *testing.T) {
	available := []string{"Spark", "Ember", "Tide"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "typo gets a suggestion",
			err:  &extractor.ChannelNotFoundError{Name: "sprak", Available: available},
			want: `channel "sprak" not found, did you mean "Spark"?`,
		},
		{
			name: "nothing close points at the listing",
			err:  &extractor.ChannelNotFoundError{Name: "zzzzzz", Available: available},
			want: `channel "zzzzzz" not found (run 'chnl channels' to list 3 channels)`,
		},
		{
			name: "empty listing",
			err:  &extractor.ChannelNotFoundError{Name: "spark"},
			want: `channel "spark" not found`,
		},
		{
			name: "other errors pass through",
			err:  errors.New("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, explain(tt.err), tt.want)
		})
	}
}

func sampleResult() *extractor.StreamResult {
	return &extractor.StreamResult{
		URLs: map[extractor.Format]string{
			extractor.FormatM3U8: "https://stream.example.com/memfs/a.m3u8",
			extractor.FormatMP4:  "https://cdn.example.com/a.mp4",
		},
		PosterURL:   "https://cdn.example.com/a.jpg",
		BlobURL:     "blob:https://example.com/1",
		Sources:     []extractor.Source{{URL: "https://cdn.example.com/a.mp4", Type: "video/mp4"}},
		Metadata:    map[string]string{"muted": "true", "autoplay": "true"},
		ChannelName: "Spark",
		ExtractedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, sampleResult())
	out := buf.String()

	assert.Contains(t, out, "Spark")
	assert.Contains(t, out, "https://stream.example.com/memfs/a.m3u8")
	assert.Contains(t, out, "https://cdn.example.com/a.jpg")
	assert.Contains(t, out, "blob:https://example.com/1")
	assert.Contains(t, out, "Sources (1)")
	assert.Contains(t, out, "autoplay=true muted=true")
	assert.Less(t, strings.Index(out, "a.m3u8"), strings.Index(out, "a.mp4"))
}

func TestWriteResultModes(t *testing.T) {
	t.Cleanup(func() { streamJSON, streamLegacy = false, false })

	var buf bytes.Buffer
	streamLegacy = true
	require.NoError(t, writeResult(&buf, sampleResult()))
	assert.JSONEq(t, `{
		"m3u8": "https://stream.example.com/memfs/a.m3u8",
		"mp4": "https://cdn.example.com/a.mp4",
		"blob_url": "blob:https://example.com/1",
		"poster_url": "https://cdn.example.com/a.jpg"
	}`, buf.String())

	buf.Reset()
	streamLegacy, streamJSON = false, true
	require.NoError(t, writeResult(&buf, sampleResult()))
	assert.Contains(t, buf.String(), `"channel_name": "Spark"`)
}

func TestConfigValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"base_url", "https://mirror.example.com"},
		{"stream_origin", "live.example.com"},
		{"viewer_api", "https://mirror.example.com/api/viewercounts"},
		{"headless", "false"},
		{"timeout", "45"},
		{"browser_path", "/usr/bin/chromium"},
		{"user_data_dir", "/tmp/profile"},
		{"user_agent", "test-agent"},
		{"selectors.item", ".channel-card"},
		{"selectors.label", "h2"},
		{"selectors.player", "#player"},
		{"selectors.media", "video.main"},
		{"selectors.source", "source[src]"},
		{"log.level", "debug"},
		{"log.json", "true"},
		{"log.file", "/tmp/chnl.log"},
		{"server.port", "9000"},
		{"server.api_key", "s3cret"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c := config.DefaultConfig()
			require.NoError(t, setConfigValue(c, tt.key, tt.value))

			got, err := getConfigValue(c, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)

			require.NoError(t, unsetConfigValue(c, tt.key))
			got, err = getConfigValue(c, tt.key)
			require.NoError(t, err)
			assert.NotEqual(t, tt.value, got)
		})
	}
}

func TestUnsetSelectorFallsBackToDefault(t *testing.T) {
	c := config.DefaultConfig()
	require.NoError(t, setConfigValue(c, "selectors.item", ".card"))
	require.NoError(t, unsetConfigValue(c, "selectors.item"))

	got, err := getConfigValue(c, "selectors.item")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSelectors().Item, got)
}

func TestConfigValueErrors(t *testing.T) {
	c := config.DefaultConfig()

	assert.ErrorContains(t, setConfigValue(c, "headless", "maybe"), "invalid boolean")
	assert.ErrorContains(t, setConfigValue(c, "timeout", "0"), "invalid timeout")
	assert.ErrorContains(t, setConfigValue(c, "timeout", "soon"), "invalid timeout")
	assert.ErrorContains(t, setConfigValue(c, "server.port", "http"), "invalid port")
	assert.ErrorContains(t, setConfigValue(c, "nope", "x"), "unknown config key")

	_, err := getConfigValue(c, "nope")
	assert.ErrorContains(t, err, "unknown config key")
	assert.ErrorContains(t, unsetConfigValue(c, "nope"), "unknown config key")
}

func TestRunInit(t *testing.T) {
	orig := configFile
	t.Cleanup(func() { configFile = orig })
	configFile = filepath.Join(t.TempDir(), "nested", "config.yml")

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runInit(cmd, false))
	assert.Contains(t, buf.String(), configFile)

	loaded, err := config.LoadFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBaseURL, loaded.BaseURL)

	assert.ErrorContains(t, runInit(cmd, false), "--force")
	require.NoError(t, runInit(cmd, true))
}

var sampleChannels = []viewers.Channel{
	{Slug: "small", Name: "Small", Viewers: 5, Online: true},
	{Slug: "quiet", Name: "Quiet", Online: false},
	{Slug: "big", Name: "Big", Viewers: 120, Online: true},
}

func TestPrintViewerSummary(t *testing.T) {
	var buf bytes.Buffer
	printViewerSummary(&buf, append([]viewers.Channel(nil), sampleChannels...))
	out := buf.String()

	assert.Contains(t, out, "Total viewers: 125")
	assert.Contains(t, out, "Channels: 2 online, 1 offline")
	assert.Less(t, strings.Index(out, "Big"), strings.Index(out, "Small"), "busiest first")
	assert.Less(t, strings.Index(out, "Small"), strings.Index(out, "Quiet"), "online before offline")
}

func TestChannelCompletions(t *testing.T) {
	assert.Equal(t, []string{"Small\tonline"}, channelCompletions(sampleChannels, false, "s"))
	assert.Equal(t, []string{"big\tonline"}, channelCompletions(sampleChannels, true, "B"))
	assert.Len(t, channelCompletions(sampleChannels, true, ""), 3)
	assert.Empty(t, channelCompletions(sampleChannels, false, "x"))
}
