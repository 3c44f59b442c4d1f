package extractor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/guiyumin/chnl/internal/core/browser"
	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/log"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const maxSuggestDistance = 2

// Opener creates the session a Client works in
type Opener func(ctx context.Context) (dom.Session, error)

// BrowserOpener launches a real browser for every session
func BrowserOpener(opts browser.Options) Opener {
	return func(ctx context.Context) (dom.Session, error) {
		return browser.Open(ctx, opts)
	}
}

// Options configures a Client
type Options struct {
	BaseURL      string
	Timeout      time.Duration // per wait-for-element
	StreamOrigin string
	Selectors    config.Selectors
	Patterns     []string
	PollInterval time.Duration
}

// OptionsFromConfig maps the config file onto client options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.TimeoutDuration(),
		StreamOrigin: cfg.StreamOrigin,
		Selectors:    cfg.ResolvedSelectors(),
		Patterns:     cfg.FallbackPatternList(),
	}
}

// BrowserOptionsFromConfig maps the config file onto browser launch options
func BrowserOptionsFromConfig(cfg *config.Config) browser.Options {
	return browser.Options{
		Headless:    cfg.IsHeadless(),
		Timeout:     cfg.TimeoutDuration(),
		BrowserPath: cfg.ResolvedBrowserPath(),
		UserDataDir: cfg.ResolvedUserDataDir(),
		UserAgent:   cfg.UserAgent,
	}
}

// Client extracts streams from the channel site. It holds one session,
// opened on first use, and is not safe for concurrent use.
type Client struct {
	opts     Options
	open     Opener
	session  dom.Session
	patterns []*regexp.Regexp
	now      func() time.Time
}

func New(open Opener, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.StreamOrigin == "" {
		opts.StreamOrigin = config.DefaultStreamOrigin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultTimeout * time.Second
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = config.DefaultFallbackPatterns
	}
	opts.Selectors = (&config.Config{Selectors: opts.Selectors}).ResolvedSelectors()

	patterns, err := CompilePatterns(opts.Patterns, opts.StreamOrigin)
	if err != nil {
		return nil, err
	}

	return &Client{
		opts:     opts,
		open:     open,
		patterns: patterns,
		now:      time.Now,
	}, nil
}

// WithClient runs fn with a new client and closes it on every return path,
// including a panic in fn
func WithClient(ctx context.Context, open Opener, opts Options, fn func(*Client) error) (err error) {
	c, err := New(open, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

func (c *Client) ensure(ctx context.Context) (dom.Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	s, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

// Resolve runs the whole extraction for the channel labelled name
func (c *Client) Resolve(ctx context.Context, name string) (*StreamResult, error) {
	s, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Navigate(ctx, c.opts.BaseURL); err != nil {
		return nil, fmt.Errorf("open %s: %w", c.opts.BaseURL, err)
	}

	entry, seen, err := NewLocator(s, c.opts.Selectors, c.opts.Timeout).find(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, &ChannelNotFoundError{Name: name, Available: seen}
	}

	log.WithField("channel", entry.Name).Debug("activating channel")
	if err := entry.Activate(ctx); err != nil {
		return nil, fmt.Errorf("activate %q: %w", entry.Name, err)
	}

	return c.extract(ctx, s, name)
}

// ExtractCurrent reads the player on the page the session already shows,
// without navigating. label is stamped as the channel name.
func (c *Client) ExtractCurrent(ctx context.Context, label string) (*StreamResult, error) {
	s, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return c.extract(ctx, s, label)
}

func (c *Client) extract(ctx context.Context, s dom.Session, name string) (*StreamResult, error) {
	fallback := NewFallback(s, c.patterns, c.opts.StreamOrigin)
	x := NewExtractor(s, c.opts.Selectors, c.opts.Timeout, c.opts.PollInterval, c.opts.StreamOrigin, fallback)

	if err := x.WaitReady(ctx); err != nil {
		if !errors.Is(err, dom.ErrTimeout) {
			return nil, err
		}
		log.WithField("channel", name).Warnf("%v, extracting anyway", err)
	}

	res, err := x.Extract(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNoStream
	}
	return assemble(res, name, c.now()), nil
}

// StreamURL is Resolve with not-found conditions reported as (nil, nil).
// Only session faults and cancellation return an error.
func (c *Client) StreamURL(ctx context.Context, name string) (*StreamResult, error) {
	res, err := c.Resolve(ctx, name)
	if err == nil {
		return res, nil
	}
	if dom.IsSessionFault(err) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	log.WithField("channel", name).Warnf("no stream: %v", err)
	return nil, nil
}

// Channels lists the channel labels on the site. A listing that never
// loaded yields an empty list.
func (c *Client) Channels(ctx context.Context) ([]string, error) {
	s, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Navigate(ctx, c.opts.BaseURL); err != nil {
		return nil, fmt.Errorf("open %s: %w", c.opts.BaseURL, err)
	}
	names, err := NewLocator(s, c.opts.Selectors, c.opts.Timeout).ListChannels(ctx)
	if errors.Is(err, dom.ErrTimeout) {
		log.Warnf("%v", err)
		return []string{}, nil
	}
	return names, err
}

// Close releases the session. It is safe to call more than once.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	s := c.session
	c.session = nil
	return s.Close()
}

// Suggest returns up to n labels close to name, best first. Labels that
// contain the letters of name in order rank first; otherwise labels within a
// small edit distance are offered.
func Suggest(name string, labels []string, n int) []string {
	ranks := fuzzy.RankFindFold(name, labels)
	if len(ranks) == 0 {
		want := strings.ToLower(strings.TrimSpace(name))
		for i, l := range labels {
			d := fuzzy.LevenshteinDistance(want, strings.ToLower(l))
			if d <= maxSuggestDistance {
				ranks = append(ranks, fuzzy.Rank{Source: name, Target: l, Distance: d, OriginalIndex: i})
			}
		}
	}
	sort.Stable(ranks)

	out := make([]string, 0, n)
	for _, r := range ranks {
		if len(out) == n {
			break
		}
		out = append(out, r.Target)
	}
	return out
}
