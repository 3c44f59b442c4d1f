package config

import "strings"

// OriginPlaceholder is replaced with the regexp-quoted stream origin
const OriginPlaceholder = "{origin}"

// DefaultFallbackPatterns are tried in order against the rendered page
// markup, from the most specific to the most general. A capture group, when
// present, is the URL.
var DefaultFallbackPatterns = []string{
	// playlist served from the origin's in-memory filesystem
	`https?://{origin}/memfs/[^"'\s<>]+?\.m3u8`,
	// quoted playlist URL on the origin
	`["'](https?://[^"'\s<>]*{origin}[^"'\s<>]*\.m3u8[^"'\s<>]*)["']`,
	// any quoted playlist URL
	`["'](https?://[^"'\s<>]+\.m3u8[^"'\s<>]*)["']`,
	// any bare playlist URL with trailing query characters
	`https?://[^"'\s<>]+\.m3u8[\w\-.~%&=?/]*`,
}

// FallbackPatternList returns the configured pattern list or the defaults
func (c *Config) FallbackPatternList() []string {
	if len(c.FallbackPatterns) > 0 {
		return c.FallbackPatterns
	}
	return DefaultFallbackPatterns
}

// ExpandOrigin substitutes the placeholder in pattern with quotedOrigin
func ExpandOrigin(pattern, quotedOrigin string) string {
	return strings.ReplaceAll(pattern, OriginPlaceholder, quotedOrigin)
}
