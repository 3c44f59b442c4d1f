package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/snapshot"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	siteURL = "https://site.test"

	listing = `<html><body>
<div class="item" data-href="/spark"><h1 channel-name="spark">Spark</h1></div>
<div class="item" data-href="/ember"><h1 channel-name="ember">Ember</h1></div>
</body></html>`

	sparkPage = `<html><body>
<div class="player-container" poster="https://img.test/spark.jpg">
  <video src="blob:https://site.test/9a"><source src="https://stream.example.com/memfs/abc123.m3u8" type="application/x-mpegURL"></video>
</div>
</body></html>`

	viewerBody = `[
  {"slug": "spark", "name": "Spark", "viewers": 12, "online": true},
  {"slug": "ember", "name": "Ember", "viewers": 0, "online": false}
]`
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	handler http.Handler
	opened  int
	closed  int
}

type trackedSession struct {
	*snapshot.Session
	f *fixture
}

func (s *trackedSession) Close() error {
	s.f.closed++
	return s.Session.Close()
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(viewerBody))
	}))
	t.Cleanup(api.Close)

	cfg := config.DefaultConfig()
	cfg.BaseURL = siteURL
	cfg.StreamOrigin = "stream.example.com"
	cfg.Timeout = 1
	cfg.Server.APIKey = apiKey

	f := &fixture{}
	open := func(ctx context.Context) (dom.Session, error) {
		f.opened++
		return &trackedSession{
			Session: snapshot.New(map[string]string{
				siteURL:            listing,
				siteURL + "/spark": sparkPage,
				siteURL + "/ember": `<html><body><p>offline</p></body></html>`,
			}),
			f: f,
		}, nil
	}

	f.handler = NewServer(cfg, open, viewers.New(api.URL, viewers.WithHTTPClient(api.Client()))).Handler()
	return f
}

func (f *fixture) get(t *testing.T, path string, header ...string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	rec, resp := f.get(t, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, resp.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, "")
	rec, _ := f.get(t, "/api/health", "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestChannels(t *testing.T) {
	f := newFixture(t, "")
	rec, resp := f.get(t, "/api/channels")

	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{"Spark", "Ember"}, data["channels"])
	assert.Equal(t, 1, f.opened)
	assert.Equal(t, 1, f.closed)
}

func TestStream(t *testing.T) {
	f := newFixture(t, "")
	rec, resp := f.get(t, "/api/stream/SPARK")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "SPARK", data["channel_name"])
	assert.Equal(t, map[string]interface{}{"m3u8": "https://stream.example.com/memfs/abc123.m3u8"}, data["urls"])
	assert.Equal(t, 1, f.closed)
}

func TestStreamLegacy(t *testing.T) {
	f := newFixture(t, "")
	rec, resp := f.get(t, "/api/stream/spark?legacy=1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"m3u8":       "https://stream.example.com/memfs/abc123.m3u8",
		"blob_url":   "blob:https://site.test/9a",
		"poster_url": "https://img.test/spark.jpg",
	}, resp.Data)
}

func TestStreamErrors(t *testing.T) {
	f := newFixture(t, "")

	rec, resp := f.get(t, "/api/stream/sprak")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{"Spark"}, data["suggestions"])

	// the ember page never shows a player
	rec, _ = f.get(t, "/api/stream/ember")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	assert.Equal(t, f.opened, f.closed)
}

func TestViewers(t *testing.T) {
	f := newFixture(t, "")

	rec, resp := f.get(t, "/api/viewers")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["channels"], 2)
	assert.Equal(t, float64(12), data["total_viewers"])

	rec, resp = f.get(t, "/api/viewers?status=offline")
	require.Equal(t, http.StatusOK, rec.Code)
	data = resp.Data.(map[string]interface{})
	assert.Len(t, data["channels"], 1)

	rec, _ = f.get(t, "/api/viewers?status=sleeping")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = f.get(t, "/api/viewers/Spark")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", resp.Message)

	rec, _ = f.get(t, "/api/viewers/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "secret")

	rec, _ := f.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.get(t, "/api/viewers")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.get(t, "/api/viewers", "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFoundRoute(t *testing.T) {
	f := newFixture(t, "")
	rec, resp := f.get(t, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 404, resp.Code)
}

func TestFailMapsSessionFaults(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/channels", nil)

	s.fail(c, &dom.SessionError{Op: "launch", Err: errors.New("no chrome")})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
