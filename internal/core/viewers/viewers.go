// Package viewers reads the channel site's viewer-count API.
package viewers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/samber/lo"
)

// Channel is one entry of the viewer-count API
type Channel struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Viewers int    `json:"viewers"`
	Online  bool   `json:"online"`
}

// UnmarshalJSON accepts the field spellings the API has used over time
func (c *Channel) UnmarshalJSON(data []byte) error {
	var raw struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Viewers     *int   `json:"viewers"`
		ViewerCount *int   `json:"viewer_count"`
		Online      *bool  `json:"online"`
		IsOnline    *bool  `json:"is_online"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Slug = raw.Slug
	c.Name = raw.Name
	c.Viewers = lo.FromPtr(lo.CoalesceOrEmpty(raw.Viewers, raw.ViewerCount))
	c.Online = lo.FromPtr(lo.CoalesceOrEmpty(raw.Online, raw.IsOnline))
	if c.Slug == "" {
		c.Slug = Slug(c.Name)
	}
	return nil
}

// Slug derives the API identifier from a display name
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// Client queries the viewer-count API
type Client struct {
	url       string
	client    *http.Client
	userAgent string
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(apiURL string, opts ...Option) *Client {
	if apiURL == "" {
		apiURL = config.DefaultViewerAPI
	}
	c := &Client{
		url: apiURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: config.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Channels fetches every channel the API knows about
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viewer counts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("viewer counts: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("viewer counts: %w", err)
	}
	return decode(body)
}

// decode accepts a bare array or an object wrapping it in "channels"
func decode(body []byte) ([]Channel, error) {
	var channels []Channel
	if err := json.Unmarshal(body, &channels); err == nil {
		return channels, nil
	}

	var wrapped struct {
		Channels []Channel `json:"channels"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse viewer counts: %w", err)
	}
	if wrapped.Channels == nil {
		return nil, fmt.Errorf("failed to parse viewer counts: no channels in response")
	}
	return wrapped.Channels, nil
}

func (c *Client) Online(ctx context.Context) ([]Channel, error) {
	all, err := c.Channels(ctx)
	if err != nil {
		return nil, err
	}
	return Online(all), nil
}

func (c *Client) Offline(ctx context.Context) ([]Channel, error) {
	all, err := c.Channels(ctx)
	if err != nil {
		return nil, err
	}
	return Offline(all), nil
}

// TotalViewers sums viewers over online channels
func (c *Client) TotalViewers(ctx context.Context) (int, error) {
	all, err := c.Channels(ctx)
	if err != nil {
		return 0, err
	}
	return TotalViewers(all), nil
}

// BySlug returns the channel with slug, or nil when the API does not list it
func (c *Client) BySlug(ctx context.Context, slug string) (*Channel, error) {
	all, err := c.Channels(ctx)
	if err != nil {
		return nil, err
	}
	return BySlug(all, slug), nil
}

// IsOnline reports whether slug is listed and online
func (c *Client) IsOnline(ctx context.Context, slug string) (bool, error) {
	ch, err := c.BySlug(ctx, slug)
	if err != nil {
		return false, err
	}
	return ch != nil && ch.Online, nil
}

func Online(channels []Channel) []Channel {
	return lo.Filter(channels, func(ch Channel, _ int) bool { return ch.Online })
}

func Offline(channels []Channel) []Channel {
	return lo.Reject(channels, func(ch Channel, _ int) bool { return ch.Online })
}

func TotalViewers(channels []Channel) int {
	return lo.SumBy(Online(channels), func(ch Channel) int { return ch.Viewers })
}

// BySlug matches case-insensitively
func BySlug(channels []Channel, slug string) *Channel {
	want := strings.TrimSpace(slug)
	ch, ok := lo.Find(channels, func(ch Channel) bool { return strings.EqualFold(ch.Slug, want) })
	if !ok {
		return nil
	}
	return &ch
}
