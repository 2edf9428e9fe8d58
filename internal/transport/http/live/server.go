package livehttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"newsdriven/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Server 提供健康检查与 /api/live 运维接口。
type Server struct {
	mu     sync.Mutex
	addr   string
	router *gin.Engine
}

const (
	requestIDHeader = "X-Request-ID"
	shutdownTimeout = 5 * time.Second
)

type ServerConfig struct {
	Addr      string
	Items     ItemSource
	Positions PositionRegistry
	Records   RecordReader
	Schemes   SchemeSource
	LogPaths  map[string]string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Items == nil && cfg.Positions == nil {
		return nil, errors.New("live http server requires ingest loop or risk manager")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	NewRouter(cfg.Items, cfg.Positions, cfg.Records, cfg.Schemes, cfg.LogPaths).Register(router.Group("/api/live"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler 返回底层 http.Handler，便于测试。
func (s *Server) Handler() http.Handler { return s.router }

// requestLogger 为每个请求分配 X-Request-ID 并在 debug 级别记录耗时。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)
		c.Next()
		logger.Debugf("[http] %s %s status=%d rid=%s dur=%s",
			c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), rid, time.Since(start).Round(time.Microsecond))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start 绑定端口并提供服务，ctx 取消后优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	logger.Infof("[http] listening on %s", ln.Addr())

	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warnf("[http] shutdown: %v", err)
		}
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
