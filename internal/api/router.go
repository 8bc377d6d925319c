package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// 探活页面：一个按钮，点击后用 htmx 拉取 /hello
const indexPage = `<!DOCTYPE html>
<html lang='en'>
<head>
<meta charset='UTF-8'>
<meta name='viewport' content='width=device-width, initial-scale=1.0'>
<title>Toram Listener</title>
<script src='https://unpkg.com/htmx.org'></script>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 0; display: flex; justify-content: center; align-items: center; height: 100vh; background-color: #f0f0f0; }
.container { text-align: center; }
button { padding: 10px 20px; font-size: 16px; }
</style>
</head>
<body>
<div class='container'>
<h1>🤗</h1>
<button hx-get='/hello' hx-target='#message' hx-swap='innerHTML'>Click Me!</button>
<div id='message'></div>
</div>
</body>
</html>`

const helloFragment = `<img src='https://media.giphy.com/media/JIX9t2j0ZTN9S/giphy.gif' alt='Dancing Cat'>`

// Server 与投递循环完全独立，只用于外部探活
type Server struct{}

func NewServer() *Server {
	return &Server{}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/", s.index)
	r.GET("/hello", s.hello)
	r.GET("/health", s.health)
	r.NoRoute(func(c *gin.Context) {
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h1>404 Not Found</h1>"))
	})
}

// NewRouter 生成带 recovery 和请求日志的路由
func NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	NewServer().RegisterRoutes(r)
	return r
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

func (s *Server) hello(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(helloFragment))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

// Run 在 ctx 取消前一直服务，取消后优雅关闭
func Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("liveness server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
