package extractor

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

// Format tags a playable URL
type Format string

const (
	FormatM3U8 Format = "m3u8"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
)

// Source is one <source> declaration as found on the page
type Source struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// StreamResult is everything recovered for one channel. A result returned
// to callers always has at least one URL, a blob reference or a source.
type StreamResult struct {
	URLs        map[Format]string `json:"urls"`
	PosterURL   string            `json:"poster_url,omitempty"`
	BlobURL     string            `json:"blob_url,omitempty"` // only valid inside the browser session
	Sources     []Source          `json:"sources,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ChannelName string            `json:"channel_name"`
	ExtractedAt time.Time         `json:"extracted_at"`
}

func newResult() *StreamResult {
	return &StreamResult{
		URLs:     make(map[Format]string),
		Metadata: make(map[string]string),
	}
}

func (r *StreamResult) empty() bool {
	return len(r.URLs) == 0 && r.BlobURL == "" && len(r.Sources) == 0
}

// URL returns the URL classified as f, or ""
func (r *StreamResult) URL(f Format) string {
	return r.URLs[f]
}

// Formats returns the classified formats in a stable order
func (r *StreamResult) Formats() []Format {
	formats := lo.Keys(r.URLs)
	slices.Sort(formats)
	return formats
}

// LegacyView flattens the result into the older single-map shape:
// format tags plus blob_url and poster_url. It returns nil when there would
// be nothing in it.
func (r *StreamResult) LegacyView() map[string]string {
	if r == nil {
		return nil
	}
	view := make(map[string]string, len(r.URLs)+2)
	for f, u := range r.URLs {
		view[string(f)] = u
	}
	if r.BlobURL != "" {
		view["blob_url"] = r.BlobURL
	}
	if r.PosterURL != "" {
		view["poster_url"] = r.PosterURL
	}
	if len(view) == 0 {
		return nil
	}
	return view
}

// assemble stamps the caller's channel name, verbatim, and the completion time
func assemble(r *StreamResult, channelName string, now time.Time) *StreamResult {
	r.ChannelName = channelName
	r.ExtractedAt = now
	return r
}

var (
	// ErrChannelNotFound matches any *ChannelNotFoundError
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoStream means the channel page loaded but nothing playable was found
	ErrNoStream = errors.New("no stream found")
)

// ChannelNotFoundError carries the labels that were listed, for suggestions
type ChannelNotFoundError struct {
	Name      string
	Available []string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel %q not found among %d listed channels", e.Name, len(e.Available))
}

func (e *ChannelNotFoundError) Is(target error) bool {
	return target == ErrChannelNotFound
}
