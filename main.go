package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"uptime-status/config"
	"uptime-status/db"
	"uptime-status/model"
	"uptime-status/monitor"
	"uptime-status/notification"
	"uptime-status/pkg/logger"
	"uptime-status/ratelimit"
	"uptime-status/server"
	"uptime-status/uptimerobot"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger 尚未初始化
		os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		os.Stderr.WriteString("Failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting uptime-status...")
	loc := cfg.Location()

	// Initialize Database
	store, err := db.Open(cfg.Storage.Path, logger.Named("db"))
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	goRun(func() { store.StartCleanupJob(ctx, cfg.RateLimit.NoticeTTL, cfg.RateLimit.NoticeTTL) })

	upstream := uptimerobot.New(uptimerobot.Options{
		Config:   cfg.Upstream,
		Location: loc,
		Logger:   logger.Named("uptimerobot"),
	})
	if !upstream.Ready() {
		logger.Warn("UPTIMEROBOT_API_KEY is not set. Fetches will report a configuration error.")
	}

	metrics := monitor.NewMetrics()
	svc := monitor.NewService(monitor.Options{
		Config:   cfg,
		Upstream: upstream,
		Limiter: ratelimit.New(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}),
		Store:   store,
		Prober:  monitor.NewProber(cfg.Probe, logger.Named("probe")),
		Metrics: metrics,
		Logger:  logger.Named("monitor"),
	})
	if err := svc.WarmStart(ctx); err != nil {
		logger.Warn("Failed to load cached snapshot", zap.Error(err))
	}

	// 倒计时归零时触发一次非强制刷新
	countdown := monitor.NewCountdown(cfg.Refresh.AutoInterval, cfg.Refresh.Tick, func(ctx context.Context) {
		if _, err := svc.Fetch(ctx, false); err != nil {
			logger.Warn("Scheduled refresh failed", zap.Error(err))
		}
	})
	// 只有真实刷新才重置倒计时
	svc.OnRealRefresh(func(prev *model.CacheEntry, next model.CacheEntry) {
		countdown.Reset()
	})

	notifier := notification.New(cfg.Notification, loc, logger.Named("notification"))
	svc.OnRealRefresh(notifier.HandleRefresh)
	if notifier.Enabled() {
		goRun(func() { notifier.Run(ctx) })
	} else {
		logger.Warn("RESEND_API_KEY or notification email is not set. Email notifications are disabled.")
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.NewServer(server.Options{
		Config:    cfg,
		Service:   svc,
		Countdown: countdown,
		Metrics:   metrics,
		DB:        store,
		Logger:    logger.Named("server"),
	})

	countdown.Start(ctx)

	port := ":" + strconv.Itoa(cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Initializing the server in a goroutine so that
	// it won't block the graceful shutdown handling below
	go func() {
		logger.Info("Server listening", zap.String("addr", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Stopping refresh countdown...")
	countdown.Stop()
	cancel()
	wg.Wait()

	if err := store.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}

	logger.Info("Server exiting")
}
