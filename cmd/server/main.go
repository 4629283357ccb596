package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/lobby-server/internal"
)

func main() {
	// 解析命令行參數
	var (
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		configPath = flag.String("config", "", "YAML 配置檔路徑")
		logLevel   = flag.String("log-level", "info", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "text", "日誌格式 (text, json)")
	)
	flag.Parse()

	// 設置日誌
	logger := setupLogger(*logLevel, *logFormat)

	// 載入配置
	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Error("載入配置失敗", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// 組裝協調層
	guard := internal.NewPasswordGuard()
	registry := internal.NewRegistry(guard, cfg.Room.DefaultCapacity, logger)
	broadcaster := internal.NewBroadcaster(logger)
	router := internal.NewRouter(registry, broadcaster, logger)
	monitor := internal.NewHeartbeatMonitor(cfg.Heartbeat.Interval.Std(), router.HandleDisconnect, logger)
	hub := internal.NewHub(router, monitor, logger)
	handler := internal.NewHandler(registry, hub, logger)

	monitor.Start()

	// 設置路由
	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("/ws", hub.ServeWS)

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	// 啟動服務器
	go func() {
		logger.Info("房間協調服務器啟動",
			"port", cfg.Server.Port,
			"heartbeat_interval", cfg.Heartbeat.Interval.Std(),
			"default_capacity", cfg.Room.DefaultCapacity)

		// 監聽失敗是唯一的致命錯誤來源
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	// 優雅關閉
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 停止心跳監控
	monitor.Stop()

	// 斷開所有連接並清理房間
	hub.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
