package server

import (
	"context"
	"net/http"
	"time"

	"uptime-status/config"
	"uptime-status/model"
	"uptime-status/monitor"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zishang520/socket.io/socket"
	"go.uber.org/zap"
)

const publicRoom = "public"

// Pinger is the storage health probe used by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config    *config.Config
	Service   *monitor.Service
	Countdown *monitor.Countdown // optional
	Metrics   *monitor.Metrics   // optional
	DB        Pinger             // optional
	Logger    *zap.Logger
	Now       func() time.Time
}

// Server 是应用程序的核心服务器结构体
type Server struct {
	router       *gin.Engine
	socketServer *socket.Server
	service      *monitor.Service
	countdown    *monitor.Countdown
	metrics      *monitor.Metrics
	db           Pinger
	cfg          *config.Config
	log          *zap.Logger
	now          func() time.Time
}

// NewServer 创建并初始化一个新的服务器实例
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
		cfg.Validate()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		router:       gin.New(),
		socketServer: socket.NewServer(nil, nil),
		service:      opts.Service,
		countdown:    opts.Countdown,
		metrics:      opts.Metrics,
		db:           opts.DB,
		cfg:          cfg,
		log:          log,
		now:          now,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())

	// 配置 CORS
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.Server.Debug {
		corsConfig.AllowOrigins = []string{"*"}
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool {
			return true
		}
	}
	s.router.Use(cors.New(corsConfig))

	s.router.GET("/health", s.health)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	// 真实刷新后推送最新列表
	s.service.OnRealRefresh(func(prev *model.CacheEntry, next model.CacheEntry) {
		s.broadcastMonitorList(next)
	})
	if s.countdown != nil {
		s.countdown.OnTick(func(remaining time.Duration) {
			s.socketServer.To(publicRoom).Emit("countdown", countdownPayload(remaining))
		})
	}

	s.registerAPIRoutes()
	s.registerRoutes()
	s.router.NoRoute(notFound)

	return s
}

// registerAPIRoutes 注册 REST API 路由
func (s *Server) registerAPIRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/monitors", s.getMonitorsAPI)
		api.GET("/monitors/:id", s.getMonitorAPI)
		api.GET("/quota", s.getQuotaAPI)
		api.GET("/groups", s.getGroupsAPI)
		api.GET("/custom-monitor", s.customMonitorHealthAPI)
		api.POST("/custom-monitor", s.customMonitorAPI)
	}
}

// Router 返回 Gin 引擎实例
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes 注册 Socket.IO 相关的路由
func (s *Server) registerRoutes() {
	handler := s.socketServer.ServeHandler(nil)
	s.router.GET("/socket.io/*any", gin.WrapH(handler))
	s.router.POST("/socket.io/*any", gin.WrapH(handler))

	s.socketServer.On("connection", func(args ...any) {
		client, ok := args[0].(*socket.Socket)
		if !ok {
			return
		}
		client.Join(publicRoom)
		s.setupMonitorHandlers(client)
	})
}

func (s *Server) health(c *gin.Context) {
	health := s.service.HealthCheck()
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			health["database"] = "down"
		} else {
			health["database"] = "up"
		}
	}
	if s.countdown != nil {
		health["next_refresh_in"] = s.countdown.Remaining().Seconds()
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
