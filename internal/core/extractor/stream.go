package extractor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/log"
)

// playbackAttrs are copied into Metadata when the media element carries them
var playbackAttrs = []string{"preload", "autoplay", "controls", "loop", "muted"}

const defaultPollInterval = 250 * time.Millisecond

// Extractor reads stream URLs from the player of an activated channel
type Extractor struct {
	page       dom.Page
	sel        config.Selectors
	timeout    time.Duration
	poll       time.Duration
	classifier classifier
	fallback   *Fallback
}

func NewExtractor(page dom.Page, sel config.Selectors, timeout, poll time.Duration, origin string, fallback *Fallback) *Extractor {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Extractor{
		page:       page,
		sel:        sel,
		timeout:    timeout,
		poll:       poll,
		classifier: classifier{origin: origin},
		fallback:   fallback,
	}
}

// WaitReady polls until the media element has a src or a non-empty source
// child. A poster alone does not count, it is static markup. It returns an error wrapping dom.ErrTimeout when the timeout
// elapses first.
func (x *Extractor) WaitReady(ctx context.Context) error {
	deadline := time.Now().Add(x.timeout)
	for {
		ready, err := x.ready(ctx)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("player not ready: %w", dom.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(x.poll):
		}
	}
}

func (x *Extractor) ready(ctx context.Context) (bool, error) {
	containers, err := x.page.Elements(ctx, x.sel.Player)
	if err != nil || len(containers) == 0 {
		return false, faultOnly(err)
	}
	media, err := x.media(containers[0])
	if err != nil {
		return false, faultOnly(err)
	}
	if v, _, err := media.Attribute("src"); err != nil {
		return false, faultOnly(err)
	} else if v != "" {
		return true, nil
	}
	sources, err := media.Elements(x.sel.Source)
	if err != nil {
		return false, faultOnly(err)
	}
	for _, s := range sources {
		if v, _, err := s.Attribute("src"); err == nil && v != "" {
			return true, nil
		}
	}
	return false, nil
}

// Extract reads the player. It returns (nil, nil) when nothing playable was
// found, and an error wrapping dom.ErrTimeout when the player never appeared.
// Failures reading individual optional fields are logged and skipped.
func (x *Extractor) Extract(ctx context.Context) (*StreamResult, error) {
	container, err := x.page.WaitElement(ctx, x.sel.Player, x.timeout)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}

	res := newResult()

	media, err := x.media(container)
	if err != nil {
		return nil, err
	}

	// poster lives on the container in newer layouts, on <video> in older ones
	poster, err := optionalAttr(container, "poster")
	if err != nil {
		return nil, err
	}
	if poster == "" {
		if poster, err = optionalAttr(media, "poster"); err != nil {
			return nil, err
		}
	}
	res.PosterURL = poster

	if res.BlobURL, err = optionalAttr(media, "src"); err != nil {
		return nil, err
	}

	if err := x.readSources(media, res); err != nil {
		return nil, err
	}

	if err := readPlayback(media, res); err != nil {
		return nil, err
	}

	readDimensions(media, res)

	if _, ok := res.URLs[FormatM3U8]; !ok && x.fallback != nil {
		u, err := x.fallback.ExtractFromPage(ctx)
		if err != nil {
			return nil, err
		}
		if u != "" {
			res.URLs[FormatM3U8] = u
		}
	}

	if res.empty() {
		return nil, nil
	}
	return res, nil
}

// media returns the media element inside container, or container itself
// when it is the media element
func (x *Extractor) media(container dom.Element) (dom.Element, error) {
	media, err := dom.First(container, x.sel.Media)
	switch {
	case err == nil:
		return media, nil
	case dom.IsSessionFault(err):
		return nil, err
	default:
		return container, nil
	}
}

// readSources records every non-empty source, then classifies it. Later
// sources overwrite earlier ones of the same format.
func (x *Extractor) readSources(media dom.Element, res *StreamResult) error {
	sources, err := media.Elements(x.sel.Source)
	if err != nil {
		return faultOnly(err)
	}
	for i, s := range sources {
		src, err := optionalAttr(s, "src")
		if err != nil {
			return err
		}
		if src == "" {
			continue
		}
		typ, err := optionalAttr(s, "type")
		if err != nil {
			return err
		}
		res.Sources = append(res.Sources, Source{URL: src, Type: typ})

		f, ok := x.classifier.classify(src, typ)
		if !ok {
			log.WithFields(map[string]any{"index": i, "url": src, "type": typ}).Debug("unclassified source")
			continue
		}
		res.URLs[f] = src
	}
	return nil
}

// readPlayback copies present playback attributes. Boolean attributes
// written without a value are recorded as "true".
func readPlayback(media dom.Element, res *StreamResult) error {
	for _, name := range playbackAttrs {
		v, ok, err := media.Attribute(name)
		if err != nil {
			if fault := faultOnly(err); fault != nil {
				return fault
			}
			continue
		}
		if !ok {
			continue
		}
		if v == "" {
			v = "true"
		}
		res.Metadata[name] = v
	}
	return nil
}

// readDimensions records the native size when the player knows it
func readDimensions(media dom.Element, res *StreamResult) {
	w, err := intProperty(media, "videoWidth")
	if err != nil {
		log.Debugf("video width: %v", err)
		return
	}
	h, err := intProperty(media, "videoHeight")
	if err != nil {
		log.Debugf("video height: %v", err)
		return
	}
	res.Metadata["width"] = strconv.Itoa(w)
	res.Metadata["height"] = strconv.Itoa(h)
}

func intProperty(el dom.Element, name string) (int, error) {
	v, err := el.Property(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s not known yet", name)
	}
	return n, nil
}

// optionalAttr reads an attribute whose absence is not an error
func optionalAttr(el dom.Element, name string) (string, error) {
	v, _, err := el.Attribute(name)
	if err != nil {
		if fault := faultOnly(err); fault != nil {
			return "", fault
		}
		log.Debugf("read %s: %v", name, err)
		return "", nil
	}
	return v, nil
}

// faultOnly keeps session faults and cancellation, dropping lookup misses
func faultOnly(err error) error {
	if err == nil {
		return nil
	}
	if dom.IsSessionFault(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
