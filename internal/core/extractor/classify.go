package extractor

import "strings"

// playlistTypes are declared-type tokens that identify an HLS playlist
var playlistTypes = []string{
	"application/x-mpegurl",
	"application/vnd.apple.mpegurl",
	"m3u8",
}

// classifier assigns a Format to a source. Declared type beats URL suffix,
// which beats the stream-origin heuristic.
type classifier struct {
	origin string
}

func (c classifier) classify(rawURL, declaredType string) (Format, bool) {
	if f, ok := byType(declaredType); ok {
		return f, true
	}
	if f, ok := bySuffix(rawURL); ok {
		return f, true
	}
	return c.byHost(rawURL)
}

func byType(declaredType string) (Format, bool) {
	t := strings.ToLower(declaredType)
	if t == "" {
		return "", false
	}
	for _, token := range playlistTypes {
		if strings.Contains(t, token) {
			return FormatM3U8, true
		}
	}
	switch {
	case strings.Contains(t, "mp4"):
		return FormatMP4, true
	case strings.Contains(t, "webm"):
		return FormatWebM, true
	}
	return "", false
}

func bySuffix(rawURL string) (Format, bool) {
	u := strings.ToLower(rawURL)
	switch {
	case strings.HasSuffix(u, ".m3u8"):
		return FormatM3U8, true
	case strings.HasSuffix(u, ".mp4"):
		return FormatMP4, true
	case strings.HasSuffix(u, ".webm"):
		return FormatWebM, true
	}
	return "", false
}

// byHost catches playlists whose URL carries a query string, as long as
// they come from the stream origin
func (c classifier) byHost(rawURL string) (Format, bool) {
	if c.origin == "" {
		return "", false
	}
	u := strings.ToLower(rawURL)
	if strings.Contains(u, strings.ToLower(c.origin)) && strings.Contains(u, ".m3u8") {
		return FormatM3U8, true
	}
	return "", false
}
