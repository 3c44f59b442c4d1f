// Package browser drives a real Chrome through go-rod with stealth patches
// applied, exposing it as a dom.Session.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/log"
)

// hideWebdriver runs before any page script so sites cannot see the
// automation flag
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Options configures the launched browser
type Options struct {
	Headless    bool
	Timeout     time.Duration // bound for navigation
	BrowserPath string
	UserDataDir string
	UserAgent   string
}

// Session owns one browser process and one stealth page
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	closed   bool
}

var _ dom.Session = (*Session)(nil)

// Open launches the browser. The returned session must be closed.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := newLauncher(opts)

	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, &dom.SessionError{Op: "launch", Err: err}
	}

	s := &Session{launcher: l, timeout: opts.Timeout}

	s.browser = rod.New().ControlURL(u)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		_ = s.Close()
		return nil, &dom.SessionError{Op: "connect", Err: err}
	}

	s.page, err = stealth.Page(s.browser)
	if err != nil {
		_ = s.Close()
		return nil, &dom.SessionError{Op: "open page", Err: err}
	}

	if _, err := s.page.EvalOnNewDocument(hideWebdriver); err != nil {
		_ = s.Close()
		return nil, &dom.SessionError{Op: "install init script", Err: err}
	}

	log.WithField("headless", opts.Headless).Debug("browser launched")
	return s, nil
}

func newLauncher(opts Options) *launcher.Launcher {
	l := launcher.New().
		Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("no-first-run").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1920,1080").
		Delete("enable-automation")

	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	// Explicitly set browser path if provided (required for Docker)
	if opts.BrowserPath != "" {
		l = l.Bin(opts.BrowserPath)
	}
	return l
}

// Navigate loads url and blocks until the load event fires
func (s *Session) Navigate(ctx context.Context, url string) error {
	p, err := s.pageCtx(ctx)
	if err != nil {
		return err
	}
	if s.timeout > 0 {
		p = p.Timeout(s.timeout)
	}
	if err := p.Navigate(url); err != nil {
		return mapErr("navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return mapErr("wait load", err)
	}
	return nil
}

// WaitElement blocks until selector matches or timeout elapses
func (s *Session) WaitElement(ctx context.Context, selector string, timeout time.Duration) (dom.Element, error) {
	p, err := s.pageCtx(ctx)
	if err != nil {
		return nil, err
	}
	el, err := p.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, mapErr("wait "+selector, err)
	}
	return &element{el: el.CancelTimeout()}, nil
}

// Elements returns the current matches without waiting
func (s *Session) Elements(ctx context.Context, selector string) ([]dom.Element, error) {
	p, err := s.pageCtx(ctx)
	if err != nil {
		return nil, err
	}
	els, err := p.Elements(selector)
	if err != nil {
		return nil, mapErr("query "+selector, err)
	}
	return wrap(els), nil
}

// HTML returns the rendered markup of the whole document
func (s *Session) HTML(ctx context.Context) (string, error) {
	p, err := s.pageCtx(ctx)
	if err != nil {
		return "", err
	}
	html, err := p.HTML()
	if err != nil {
		return "", mapErr("read html", err)
	}
	return html, nil
}

// Eval runs a function expression such as `() => document.title`
func (s *Session) Eval(ctx context.Context, js string) (string, error) {
	p, err := s.pageCtx(ctx)
	if err != nil {
		return "", err
	}
	res, err := p.Eval(js)
	if err != nil {
		return "", mapErr("eval", err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.String(), nil
}

// Close releases the page, the browser and the launcher. Calling it again,
// or on a session that never launched, is a no-op.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.page != nil {
		if perr := s.page.Close(); perr != nil {
			log.Debugf("close page: %v", perr)
		}
		s.page = nil
	}
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return err
}

func (s *Session) pageCtx(ctx context.Context) (*rod.Page, error) {
	if s.closed || s.page == nil {
		return nil, &dom.SessionError{Op: "use", Err: errors.New("session is closed")}
	}
	return s.page.Context(ctx), nil
}

// mapErr sorts rod errors into the dom taxonomy
func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, dom.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return err
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return dom.ErrNoElement
	}
	return &dom.SessionError{Op: op, Err: err}
}

// mapNodeErr is mapErr for calls on a single node. Protocol errors there
// concern that node, not the browser.
func mapNodeErr(op string, err error) error {
	var cdpErr *cdp.Error
	var gone *rod.ObjectNotFoundError
	if errors.As(err, &cdpErr) || errors.As(err, &gone) {
		return fmt.Errorf("%s: %w: %v", op, dom.ErrDetached, err)
	}
	return mapErr(op, err)
}

type element struct {
	el *rod.Element
}

func wrap(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el})
	}
	return out
}

func (e *element) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, mapNodeErr("attribute "+name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Text() (string, error) {
	t, err := e.el.Text()
	if err != nil {
		return "", mapNodeErr("text", err)
	}
	return t, nil
}

func (e *element) Property(name string) (string, error) {
	v, err := e.el.Property(name)
	if err != nil {
		return "", mapNodeErr("property "+name, err)
	}
	if v.Nil() {
		return "", dom.ErrNoElement
	}
	return v.String(), nil
}

// Click tries a real mouse click first; channel tiles are sometimes covered
// by overlays, in which case a DOM click still triggers the handler.
func (e *element) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	err := el.Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	log.Debugf("mouse click failed, using DOM click: %v", err)
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return mapNodeErr("click", err)
	}
	return nil
}

func (e *element) Elements(selector string) ([]dom.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, mapNodeErr("query "+selector, err)
	}
	return wrap(els), nil
}
