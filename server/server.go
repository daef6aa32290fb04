package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/server/common"
	"deeptrace-backend-controller/server/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

/*
Config HTTP 服务配置。

	AdminToken 非空时 /admin 下的接口需要携带 X-Admin-Token；
	DebugMode 为 true 时不校验令牌，并以 gin 的 debug 模式运行；
*/
type Config struct {
	Host       string
	Port       int
	DebugMode  bool
	AdminToken string
}

type Server struct {
	engine *gin.Engine
	config *Config
	http   *http.Server
}

func New(config *Config) *Server {
	if !config.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	eng := gin.New()

	eng.Use(gin.Recovery())
	eng.Use(common.LogRequest)
	eng.Use(cors.New(corsConfig()))

	eng.GET("/test/coffee", coffeeHandler)

	apiGroup := eng.Group("api")
	{
		apiGroup.GET("/orgs", handler.ListOrgs)
		apiGroup.GET("/dates", handler.ListDates)
		apiGroup.GET("/analytics", handler.GetAnalytics)
		apiGroup.GET("/node", handler.GetNodeDetail)
		apiGroup.GET("/status", handler.GetStatus)
	}

	// 需要管理令牌的路由
	adminGroup := eng.Group("admin")
	{
		adminGroup.Use(common.RejectWrongAdminToken(config.AdminToken, config.DebugMode))

		adminGroup.POST("/upload", handler.UploadFile)
		adminGroup.POST("/analyze", handler.Analyze)
	}

	return &Server{
		engine: eng,
		config: config,
	}
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, common.HeaderAdminToken, common.HeaderRequestID)
	cfg.ExposeHeaders = []string{common.HeaderRequestID}
	return cfg
}

func coffeeHandler(ctx *gin.Context) {
	ctx.String(http.StatusTeapot, "I'm a teapot")
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// RunServer 阻塞直到 ctx 结束，之后最多等待 10 秒让正在处理的请求完成。
func (s *Server) RunServer(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler: s.engine,
	}

	errChan := make(chan error, 1)
	go func() {
		logging.Default().Infof("server listening on %s", s.http.Addr)
		errChan <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
