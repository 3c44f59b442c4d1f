package dom

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubElement struct {
	children []Element
	err      error
}

func (s *stubElement) Attribute(string) (string, bool, error) { return "", false, nil }
func (s *stubElement) Text() (string, error)                  { return "", nil }
func (s *stubElement) Property(string) (string, error)        { return "", ErrNoElement }
func (s *stubElement) Click(context.Context) error            { return nil }
func (s *stubElement) Elements(string) ([]Element, error)     { return s.children, s.err }

func TestFirst(t *testing.T) {
	a, b := &stubElement{}, &stubElement{}

	got, err := First(&stubElement{children: []Element{a, b}}, "x")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = First(&stubElement{}, "x")
	assert.ErrorIs(t, err, ErrNoElement)

	fault := &SessionError{Op: "query", Err: errors.New("target closed")}
	_, err = First(&stubElement{err: fault}, "x")
	assert.True(t, IsSessionFault(err))
}

func TestIsSessionFault(t *testing.T) {
	fault := &SessionError{Op: "navigate", Err: errors.New("connection reset")}

	assert.True(t, IsSessionFault(fault))
	assert.True(t, IsSessionFault(fmt.Errorf("open page: %w", fault)))
	assert.False(t, IsSessionFault(ErrTimeout))
	assert.False(t, IsSessionFault(nil))

	assert.EqualError(t, fault, "browser session: navigate: connection reset")
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", &SessionError{Op: "wait", Err: ErrTimeout}), ErrTimeout)
}
