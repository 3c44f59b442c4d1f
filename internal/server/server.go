package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/dom"
	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/guiyumin/chnl/internal/core/log"
	"github.com/guiyumin/chnl/internal/core/version"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxSuggestions  = 3
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Server is the HTTP server for chnl
type Server struct {
	port    int
	apiKey  string
	cfg     *config.Config
	open    extractor.Opener
	viewers *viewers.Client

	// one browser at a time
	mu sync.Mutex

	server *http.Server
	engine *gin.Engine
}

// NewServer creates a new HTTP server. Every extraction request opens its
// own session through open.
func NewServer(cfg *config.Config, open extractor.Opener, vc *viewers.Client) *Server {
	return &Server{
		port:    cfg.ServerPort(),
		apiKey:  cfg.Server.APIKey,
		cfg:     cfg,
		open:    open,
		viewers: vc,
	}
}

// Handler builds the gin engine with all routes
func (s *Server) Handler() http.Handler {
	if s.engine != nil {
		return s.engine
	}

	s.engine = gin.New()

	s.engine.Use(gin.RecoveryWithWriter(log.Logger().WriterLevel(logrus.ErrorLevel)))
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(loggingMiddleware())
	if s.apiKey != "" {
		s.engine.Use(s.authMiddleware())
	}

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/channels", s.handleChannels)
	api.GET("/stream/:name", s.handleStream)
	api.GET("/viewers", s.handleViewers)
	api.GET("/viewers/:slug", s.handleViewer)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	return s.engine
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if !config.Exists() {
		log.Warnf("no config file at %s, using defaults (run 'chnl config init' to create one)", config.SavePath())
	}

	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// extraction can take several browser timeouts
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"port": s.port,
		"site": s.cfg.BaseURL,
		"auth": s.apiKey != "",
	}).Info("starting chnl server")

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Middleware

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Health endpoint doesn't require auth
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey != s.apiKey {
			c.JSON(http.StatusUnauthorized, Response{
				Code:    401,
				Data:    nil,
				Message: "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("request")
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
		},
		Message: "everything is good",
	})
}

// withClient runs fn against a fresh session, one request at a time
func (s *Server) withClient(ctx context.Context, fn func(*extractor.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return extractor.WithClient(ctx, s.open, extractor.OptionsFromConfig(s.cfg), fn)
}

func (s *Server) handleChannels(c *gin.Context) {
	var names []string
	err := s.withClient(c.Request.Context(), func(cl *extractor.Client) error {
		var err error
		names, err = cl.Channels(c.Request.Context())
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"channels": names,
			"count":    len(names),
		},
		Message: fmt.Sprintf("%d channels", len(names)),
	})
}

func (s *Server) handleStream(c *gin.Context) {
	name := c.Param("name")

	var res *extractor.StreamResult
	err := s.withClient(c.Request.Context(), func(cl *extractor.Client) error {
		var err error
		res, err = cl.Resolve(c.Request.Context(), name)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	var data interface{} = res
	if isTrue(c.Query("legacy")) {
		data = res.LegacyView()
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    data,
		Message: "stream found",
	})
}

func (s *Server) handleViewers(c *gin.Context) {
	channels, err := s.viewers.Channels(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	switch status := c.Query("status"); status {
	case "":
	case "online":
		channels = viewers.Online(channels)
	case "offline":
		channels = viewers.Offline(channels)
	default:
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Data:    nil,
			Message: fmt.Sprintf("invalid status %q: use online or offline", status),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"channels":      channels,
			"total_viewers": viewers.TotalViewers(channels),
		},
		Message: fmt.Sprintf("%d channels", len(channels)),
	})
}

func (s *Server) handleViewer(c *gin.Context) {
	slug := c.Param("slug")

	ch, err := s.viewers.BySlug(c.Request.Context(), slug)
	if err != nil {
		s.fail(c, err)
		return
	}
	if ch == nil {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: fmt.Sprintf("channel %q not found", slug),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    ch,
		Message: statusText(ch.Online),
	})
}

// fail maps extraction and upstream errors onto HTTP statuses
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var data interface{}

	var notFound *extractor.ChannelNotFoundError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		data = gin.H{
			"available":   notFound.Available,
			"suggestions": extractor.Suggest(notFound.Name, notFound.Available, maxSuggestions),
		}
	case errors.Is(err, extractor.ErrNoStream):
		status = http.StatusNotFound
	case errors.Is(err, dom.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	entry := log.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"path":       c.Request.URL.Path,
	})
	if status == http.StatusBadGateway {
		entry.Errorf("request failed: %v", err)
	} else {
		entry.Warnf("request failed: %v", err)
	}

	c.JSON(status, Response{
		Code:    status,
		Data:    data,
		Message: err.Error(),
	})
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func statusText(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
