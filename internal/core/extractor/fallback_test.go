package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFallback(t *testing.T, html string, opts ...snapshot.Option) *Fallback {
	t.Helper()
	s, err := snapshot.FromHTML(html, opts...)
	require.NoError(t, err)
	patterns, err := CompilePatterns(config.DefaultFallbackPatterns, testOrigin)
	require.NoError(t, err)
	return NewFallback(s, patterns, testOrigin)
}

func TestFallbackMarkup(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "Memfs playlist on the origin",
			html:     `<script>var hls = "https://stream.example.com/memfs/abc123.m3u8";</script>`,
			expected: "https://stream.example.com/memfs/abc123.m3u8",
		},
		{
			name:     "Memfs wins over an earlier generic URL",
			html:     `<a href="https://cdn.test/other.m3u8">x</a><script>load('https://stream.example.com/memfs/k9.m3u8')</script>`,
			expected: "https://stream.example.com/memfs/k9.m3u8",
		},
		{
			name:     "Quoted origin URL keeps its query",
			html:     `<script>p('https://stream.example.com/live/main.m3u8?t=42')</script>`,
			expected: "https://stream.example.com/live/main.m3u8?t=42",
		},
		{
			name:     "Quoted attribute is unescaped",
			html:     `<a href="https://cdn.test/x.m3u8?a=1&amp;b=2">x</a>`,
			expected: "https://cdn.test/x.m3u8?a=1&b=2",
		},
		{
			name:     "Bare URL in text",
			html:     `<pre>playlist: https://cdn.test/live.m3u8?sig=a-b_c</pre>`,
			expected: "https://cdn.test/live.m3u8?sig=a-b_c",
		},
		{
			name: "Nothing playable",
			html: `<p>https://cdn.test/image.png</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newFallback(t, tt.html).ExtractFromPage(context.Background())
			require.NoError(t, err)
			if got != tt.expected {
				t.Errorf("ExtractFromPage()\n  got:  %q\n  want: %q", got, tt.expected)
			}
		})
	}
}

func TestFallbackScript(t *testing.T) {
	var script string
	fb := newFallback(t, `<video></video>`, snapshot.WithEval(func(_ *goquery.Document, js string) (string, error) {
		script = js
		return "https://cdn.test/from-script.m3u8", nil
	}))

	got, err := fb.ExtractFromPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/from-script.m3u8", got)
	assert.True(t, strings.Contains(script, `"stream.example.com"`), "origin should be embedded in the script")
}

func TestFallbackScriptErrors(t *testing.T) {
	ctx := context.Background()

	miss := newFallback(t, `<video></video>`, snapshot.WithEval(func(*goquery.Document, string) (string, error) {
		return "", errors.New("ReferenceError")
	}))
	got, err := miss.ExtractFromPage(ctx)
	assert.NoError(t, err)
	assert.Empty(t, got)

	fault := newFallback(t, `<video></video>`, snapshot.WithEval(func(*goquery.Document, string) (string, error) {
		return "", &dom.SessionError{Op: "eval", Err: errors.New("target closed")}
	}))
	_, err = fault.ExtractFromPage(ctx)
	assert.True(t, dom.IsSessionFault(err))
}

func TestCompilePatternsRejectsBadPattern(t *testing.T) {
	_, err := CompilePatterns([]string{`https://{origin}/ok`, `(`}, testOrigin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback pattern 2")
}

func TestCompilePatternsQuotesOrigin(t *testing.T) {
	res, err := CompilePatterns([]string{`https://{origin}/x`}, testOrigin)
	require.NoError(t, err)
	assert.True(t, res[0].MatchString("https://stream.example.com/x"))
	assert.False(t, res[0].MatchString("https://streamXexampleYcom/x"))
}
