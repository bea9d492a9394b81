package api

import (
	"RegionOcrServer/logger"
	"RegionOcrServer/monitor"
	"RegionOcrServer/pipeline"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUpload is the default bound on multipart uploads and websocket frames.
const maxUpload = 20 * 1024 * 1024

// multipartSlack covers form boundaries and part headers around the file itself.
const multipartSlack = 1 << 20

// Analyzer is what the HTTP surface needs from the pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*pipeline.Response, error)
	Labels() []string
}

type Options struct {
	RequestTimeout time.Duration
	// MaxUpload bounds an uploaded file or websocket frame in bytes.
	MaxUpload int64
	// IdleTimeout closes websocket sessions that send nothing for this long.
	IdleTimeout time.Duration
}

type Server struct {
	analyzer Analyzer
	opts     Options
	engine   *gin.Engine

	srvMu sync.Mutex
	srv   *http.Server

	sessionMu sync.RWMutex
	sessions  map[string]*instance
}

func NewServer(a Analyzer, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = maxUpload
	}
	s := &Server{
		analyzer: a,
		opts:     opts,
		sessions: map[string]*instance{},
	}

	r := gin.New()
	r.MaxMultipartMemory = opts.MaxUpload
	r.Use(gin.Recovery(), requestLogger(), cors())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/labels", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": s.analyzer.Labels()})
	})
	r.GET("/api/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": s.sessionCount()})
	})
	r.POST("/analyze", s.analyze)
	r.GET("/ws/analyze", s.serveWS)
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on port until Shutdown.
func (s *Server) Run(port int) error {
	s.srvMu.Lock()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.srvMu.Unlock()

	logger.Log().Info("HTTP server listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes websocket sessions and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessionMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionMu.RUnlock()
	for _, id := range ids {
		s.releaseInstance(id, "server shutting down")
	}

	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) analyze(c *gin.Context) {
	tooLarge := gin.H{"detail": fmt.Sprintf("file larger than %d bytes", s.opts.MaxUpload)}
	limit := s.opts.MaxUpload + multipartSlack
	if c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing file: " + err.Error()})
		return
	}
	if file.Size > s.opts.MaxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()
	ctx = pipeline.WithRequestID(ctx, c.GetHeader("X-Request-ID"))

	resp, err := s.analyzer.Analyze(ctx, data)
	monitor.ObserveRequest("http", err)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrEmptyImage) {
			status = http.StatusBadRequest
		}
		logger.Request(pipeline.RequestID(ctx)).Error("analyze failed",
			zap.String("file", file.Filename), zap.Error(err))
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}
	c.Header("X-Request-ID", pipeline.RequestID(ctx))
	c.JSON(http.StatusOK, resp)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// cors allows every origin, method and header.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		allowHeaders := c.GetHeader("Access-Control-Request-Headers")
		if allowHeaders == "" {
			allowHeaders = "*"
		}
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
