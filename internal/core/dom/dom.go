// Package dom is the boundary between the extraction logic and whatever
// renders the page: a live browser or a saved HTML snapshot.
package dom

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout means a required element did not appear in time
	ErrTimeout = errors.New("timed out waiting for element")

	// ErrNoElement means an optional lookup found nothing
	ErrNoElement = errors.New("element not found")

	// ErrDetached means a node was removed from the page after it was
	// found. Callers skip it like a missing element.
	ErrDetached = errors.New("element detached from page")

	// ErrUnsupported means the backend cannot perform the operation,
	// e.g. running scripts against a static snapshot
	ErrUnsupported = errors.New("operation not supported")
)

// SessionError is an unrecoverable failure of the underlying browser
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session: %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsSessionFault reports whether err (or anything it wraps) is a SessionError
func IsSessionFault(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// Element is a handle to one node of the current page. Handles are only
// valid until the next navigation.
type Element interface {
	// Attribute returns the attribute value and whether it is present
	Attribute(name string) (string, bool, error)

	// Text returns the rendered text content
	Text() (string, error)

	// Property reads a live DOM property such as videoWidth
	Property(name string) (string, error)

	// Click activates the element
	Click(ctx context.Context) error

	// Elements returns descendants matching selector in document order,
	// without waiting
	Elements(selector string) ([]Element, error)
}

// Page is the rendered document
type Page interface {
	Navigate(ctx context.Context, url string) error

	// WaitElement blocks until selector matches, returning ErrTimeout
	// (wrapped) after timeout
	WaitElement(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// Elements returns all current matches in document order without waiting
	Elements(ctx context.Context, selector string) ([]Element, error)

	// HTML returns the full rendered markup
	HTML(ctx context.Context) (string, error)

	// Eval runs a function expression in the page and returns its result
	// as a string
	Eval(ctx context.Context, js string) (string, error)
}

// Session is a Page that owns its resources
type Session interface {
	Page
	Close() error
}

// First returns the first descendant of el matching selector, or
// ErrNoElement
func First(el Element, selector string) (Element, error) {
	els, err := el.Elements(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, ErrNoElement
	}
	return els[0], nil
}
