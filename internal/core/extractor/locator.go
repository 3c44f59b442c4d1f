package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/log"
)

// labelAttr holds the channel name on the listing heading; used when the
// heading has no rendered text
const labelAttr = "channel-name"

var errEmptyLabel = errors.New("empty channel label")

// ChannelEntry is one clickable channel in the listing. It is only valid
// until the page navigates.
type ChannelEntry struct {
	Name string
	el   dom.Element
}

// Activate clicks the entry
func (c *ChannelEntry) Activate(ctx context.Context) error {
	return c.el.Click(ctx)
}

// Locator finds channels in the listing of the current page
type Locator struct {
	page    dom.Page
	sel     config.Selectors
	timeout time.Duration
}

func NewLocator(page dom.Page, sel config.Selectors, timeout time.Duration) *Locator {
	return &Locator{page: page, sel: sel, timeout: timeout}
}

// FindChannel returns the first entry whose label equals name, ignoring case
// and surrounding whitespace. It returns (nil, nil) when the listing loaded
// but nothing matched, and an error wrapping dom.ErrTimeout when the listing
// never appeared.
func (l *Locator) FindChannel(ctx context.Context, name string) (*ChannelEntry, error) {
	entry, _, err := l.find(ctx, name)
	return entry, err
}

// find also returns every label seen before giving up
func (l *Locator) find(ctx context.Context, name string) (*ChannelEntry, []string, error) {
	want := strings.TrimSpace(name)
	var (
		found *ChannelEntry
		seen  []string
	)
	err := l.each(ctx, func(label string, el dom.Element) bool {
		if strings.EqualFold(label, want) {
			found = &ChannelEntry{Name: label, el: el}
			return false
		}
		seen = append(seen, label)
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	return found, seen, nil
}

// ListChannels returns the labels of all readable entries in DOM order.
// Entries that cannot be read are left out.
func (l *Locator) ListChannels(ctx context.Context) ([]string, error) {
	var names []string
	err := l.each(ctx, func(label string, _ dom.Element) bool {
		names = append(names, label)
		return true
	})
	return names, err
}

// each waits for the listing, then calls fn for every readable entry until
// fn returns false
func (l *Locator) each(ctx context.Context, fn func(label string, el dom.Element) bool) error {
	if _, err := l.page.WaitElement(ctx, l.sel.Item, l.timeout); err != nil {
		return fmt.Errorf("channel listing: %w", err)
	}

	items, err := l.page.Elements(ctx, l.sel.Item)
	if err != nil {
		return fmt.Errorf("channel listing: %w", err)
	}

	for i, item := range items {
		label, err := l.label(item)
		if err != nil {
			if dom.IsSessionFault(err) {
				return err
			}
			log.WithField("index", i).Debugf("skipping listing entry: %v", err)
			continue
		}
		if !fn(label, item) {
			return nil
		}
	}
	return nil
}

func (l *Locator) label(item dom.Element) (string, error) {
	heading, err := dom.First(item, l.sel.Label)
	if err != nil {
		return "", err
	}
	text, err := heading.Text()
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}
	attr, _, err := heading.Attribute(labelAttr)
	if err != nil {
		return "", err
	}
	if attr = strings.TrimSpace(attr); attr != "" {
		return attr, nil
	}
	return "", errEmptyLabel
}
