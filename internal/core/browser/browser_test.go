package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLauncherFlags(t *testing.T) {
	l := newLauncher(Options{
		Headless:    true,
		UserAgent:   "test-agent",
		UserDataDir: "/tmp/chnl-test-profile",
		BrowserPath: "/usr/bin/chromium",
	})

	assert.True(t, l.Has(flags.Headless))
	assert.Equal(t, "AutomationControlled", l.Get("disable-blink-features"))
	assert.False(t, l.Has("enable-automation"))
	assert.Equal(t, "test-agent", l.Get("user-agent"))
	assert.Equal(t, "/tmp/chnl-test-profile", l.Get(flags.UserDataDir))
	assert.Equal(t, "/usr/bin/chromium", l.Get(flags.Bin))
}

func TestNewLauncherVisible(t *testing.T) {
	l := newLauncher(Options{Headless: false})
	assert.False(t, l.Has(flags.Headless))
	assert.False(t, l.Has("user-agent"))
}

func TestCloseIsIdempotent(t *testing.T) {
	s := &Session{}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	var nilSession *Session
	assert.NoError(t, nilSession.Close())
}

func TestClosedSessionRejectsUse(t *testing.T) {
	s := &Session{}
	require.NoError(t, s.Close())

	_, err := s.HTML(context.Background())
	assert.True(t, dom.IsSessionFault(err))
}

func TestOpenHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := Open(ctx, Options{Headless: true})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr("wait", fmt.Errorf("x: %w", context.DeadlineExceeded)), dom.ErrTimeout)
	assert.ErrorIs(t, mapErr("wait", context.Canceled), context.Canceled)
	assert.ErrorIs(t, mapErr("find", &rod.ElementNotFoundError{}), dom.ErrNoElement)

	err := mapErr("eval", errors.New("websocket closed"))
	assert.True(t, dom.IsSessionFault(err))
	assert.Contains(t, err.Error(), "eval")
}

func TestMapNodeErrDetached(t *testing.T) {
	stale := &cdp.Error{Code: -32000, Message: "Could not find node with given id"}

	err := mapNodeErr("text", stale)
	assert.ErrorIs(t, err, dom.ErrDetached)
	assert.False(t, dom.IsSessionFault(err))
	assert.Contains(t, err.Error(), "text")

	err = mapNodeErr("attribute src", &rod.ObjectNotFoundError{})
	assert.ErrorIs(t, err, dom.ErrDetached)
	assert.False(t, dom.IsSessionFault(err))

	// node calls still report timeouts and a dead connection as before
	assert.ErrorIs(t, mapNodeErr("text", context.DeadlineExceeded), dom.ErrTimeout)
	assert.True(t, dom.IsSessionFault(mapNodeErr("text", errors.New("websocket closed"))))

	// protocol errors on page-level calls are still session faults
	assert.True(t, dom.IsSessionFault(mapErr("navigate", stale)))
}
