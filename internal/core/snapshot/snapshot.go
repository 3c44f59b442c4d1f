// Package snapshot serves saved HTML pages through the dom.Session
// interface, so the extraction pipeline can run without a browser.
//
// A snapshot never changes on its own: waits succeed immediately or time
// out immediately. Clicking an element that carries an href or data-href
// (on itself or an ancestor) loads the matching page, if one was registered.
// Live DOM properties are read from the lowercase attribute of the same
// name, e.g. <video videowidth="1280">.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/guiyumin/chnl/internal/core/dom"
)

// EvalFunc answers in-page scripts for a snapshot
type EvalFunc func(doc *goquery.Document, js string) (string, error)

// Session is an offline dom.Session
type Session struct {
	pages   map[string]string
	doc     *goquery.Document
	url     string
	closed  bool
	evalFn  EvalFunc
	Clicked []string // hrefs followed by Click, in order
}

var _ dom.Session = (*Session)(nil)

// Option customizes a Session
type Option func(*Session)

// WithEval installs a script handler. Without one Eval returns
// dom.ErrUnsupported.
func WithEval(fn EvalFunc) Option {
	return func(s *Session) { s.evalFn = fn }
}

// New creates a session over pages keyed by absolute URL. The empty key, if
// present, is served for any URL without its own entry.
func New(pages map[string]string, opts ...Option) *Session {
	s := &Session{pages: pages}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromHTML creates a session already showing html
func FromHTML(html string, opts ...Option) (*Session, error) {
	s := New(map[string]string{"": html}, opts...)
	if err := s.load("", html); err != nil {
		return nil, err
	}
	return s, nil
}

// FromFile reads a saved page from disk
func FromFile(path string, opts ...Option) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return FromHTML(string(data), opts...)
}

func (s *Session) load(rawURL, html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	s.doc = doc
	s.url = rawURL
	return nil
}

func (s *Session) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return &dom.SessionError{Op: op, Err: errors.New("session is closed")}
	}
	if s.doc == nil && op != "navigate" {
		return &dom.SessionError{Op: op, Err: errors.New("no page loaded")}
	}
	return nil
}

// Navigate loads the page registered for rawURL
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.check(ctx, "navigate"); err != nil {
		return err
	}
	html, ok := s.pages[rawURL]
	if !ok {
		html, ok = s.pages[""]
	}
	if !ok {
		return &dom.SessionError{Op: "navigate", Err: fmt.Errorf("no snapshot for %s", rawURL)}
	}
	return s.load(rawURL, html)
}

// WaitElement returns the first match, or ErrTimeout when there is none
func (s *Session) WaitElement(ctx context.Context, selector string, timeout time.Duration) (dom.Element, error) {
	if err := s.check(ctx, "wait"); err != nil {
		return nil, err
	}
	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("wait %s: %w", selector, dom.ErrTimeout)
	}
	return &element{s: s, sel: sel}, nil
}

func (s *Session) Elements(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := s.check(ctx, "query"); err != nil {
		return nil, err
	}
	return s.wrap(s.doc.Find(selector)), nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := s.check(ctx, "read html"); err != nil {
		return "", err
	}
	return goquery.OuterHtml(s.doc.Selection)
}

func (s *Session) Eval(ctx context.Context, js string) (string, error) {
	if err := s.check(ctx, "eval"); err != nil {
		return "", err
	}
	if s.evalFn == nil {
		return "", dom.ErrUnsupported
	}
	return s.evalFn(s.doc, js)
}

// Close is idempotent
func (s *Session) Close() error {
	s.closed = true
	s.doc = nil
	return nil
}

// URL returns the address of the page currently shown
func (s *Session) URL() string {
	return s.url
}

func (s *Session) wrap(sel *goquery.Selection) []dom.Element {
	out := make([]dom.Element, 0, sel.Length())
	sel.Each(func(_ int, node *goquery.Selection) {
		out = append(out, &element{s: s, sel: node})
	})
	return out
}

type element struct {
	s   *Session
	sel *goquery.Selection
}

func (e *element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) Text() (string, error) {
	return e.sel.Text(), nil
}

func (e *element) Property(name string) (string, error) {
	if v, ok := e.sel.Attr(strings.ToLower(name)); ok {
		return v, nil
	}
	return "", dom.ErrNoElement
}

func (e *element) Click(ctx context.Context) error {
	if err := e.s.check(ctx, "click"); err != nil {
		return err
	}
	link := e.sel.Closest("[href], [data-href]")
	if link.Length() == 0 {
		return nil
	}
	href, ok := link.Attr("data-href")
	if !ok {
		href, _ = link.Attr("href")
	}
	target := e.s.resolve(href)
	html, ok := e.s.pages[target]
	if !ok {
		return nil
	}
	e.s.Clicked = append(e.s.Clicked, href)
	return e.s.load(target, html)
}

func (e *element) Elements(selector string) ([]dom.Element, error) {
	return e.s.wrap(e.sel.Find(selector)), nil
}

func (s *Session) resolve(href string) string {
	base, err := url.Parse(s.url)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
