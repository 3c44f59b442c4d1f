package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/log"
)

// playlistScript looks through the live DOM, first at source-bearing
// elements for a playlist or origin URL, then at any URL attribute that
// mentions m3u8. %s is the JSON-quoted stream origin.
const playlistScript = `() => {
	const origin = %s;
	const attrs = ['src', 'href', 'data-src'];
	const urlOf = (el) => {
		for (const a of attrs) {
			const v = el.getAttribute(a);
			if (v) return v;
		}
		return '';
	};
	for (const el of document.querySelectorAll('video, audio, source, track, iframe, embed, object, script[src], link[href]')) {
		const u = el.currentSrc || el.src || urlOf(el);
		if (u && (u.includes('.m3u8') || (origin && u.includes(origin)))) return u;
	}
	for (const el of document.querySelectorAll('[src], [href], [data-src]')) {
		const u = urlOf(el);
		if (u.includes('m3u8')) return u;
	}
	return '';
}`

// Fallback recovers a playlist URL from page text when the player markup
// does not declare one
type Fallback struct {
	page     dom.Page
	patterns []*regexp.Regexp
	script   string
}

// CompilePatterns expands the origin placeholder and compiles patterns in order
func CompilePatterns(patterns []string, origin string) ([]*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(origin)
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(config.ExpandOrigin(p, quoted))
		if err != nil {
			return nil, fmt.Errorf("fallback pattern %d: %w", i+1, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func NewFallback(page dom.Page, patterns []*regexp.Regexp, origin string) *Fallback {
	quoted, _ := json.Marshal(origin)
	return &Fallback{
		page:     page,
		patterns: patterns,
		script:   fmt.Sprintf(playlistScript, quoted),
	}
}

// ExtractFromPage tries the markup patterns, then the in-page script. It
// returns "" when neither finds anything; only session faults are errors.
func (f *Fallback) ExtractFromPage(ctx context.Context) (string, error) {
	markup, err := f.page.HTML(ctx)
	switch {
	case err == nil:
		if u := f.matchMarkup(markup); u != "" {
			log.WithField("url", u).Debug("playlist recovered from page markup")
			return u, nil
		}
	case dom.IsSessionFault(err), errors.Is(err, context.Canceled):
		return "", err
	default:
		log.Debugf("read page markup: %v", err)
	}

	u, err := f.page.Eval(ctx, f.script)
	switch {
	case err == nil:
		if u != "" {
			log.WithField("url", u).Debug("playlist recovered by page script")
		}
		return u, nil
	case dom.IsSessionFault(err), errors.Is(err, context.Canceled):
		return "", err
	case errors.Is(err, dom.ErrUnsupported):
		return "", nil
	default:
		log.Debugf("page script: %v", err)
		return "", nil
	}
}

// matchMarkup returns the first match of the first pattern that matches,
// preferring the first capture group when the pattern has one
func (f *Fallback) matchMarkup(markup string) string {
	for _, re := range f.patterns {
		m := re.FindStringSubmatch(markup)
		if m == nil {
			continue
		}
		u := m[0]
		if len(m) > 1 && m[1] != "" {
			u = m[1]
		}
		return html.UnescapeString(u)
	}
	return ""
}
