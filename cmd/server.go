/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Kirifer/ITS-certificate-generator/internal/api"
	"github.com/Kirifer/ITS-certificate-generator/internal/config"
	"github.com/Kirifer/ITS-certificate-generator/internal/container"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the certificate approval API server.
The server will listen on the configured host and port,
and provide REST API interfaces for the certificate approval workflow.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化日志
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logrus.SetLevel(logger.Level)
		logrus.SetFormatter(logger.Formatter)

		// 3. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 4. 启动 WebSocket Hub
		go ctr.Hub().Run()

		// 5. 监听配置文件变化,热更新日志级别
		if configPath != "" {
			watcher := config.NewWatcher(cfg, configPath)
			watcher.OnChange(func(updated *config.Config) {
				if level, err := logrus.ParseLevel(updated.Log.Level); err == nil {
					logger.SetLevel(level)
					logrus.SetLevel(level)
				}
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("配置文件监听启动失败")
			} else {
				defer watcher.Stop()
			}
		}

		// 6. 设置路由
		router := api.SetupRoutes(&api.RouterDeps{
			Config:       cfg,
			DB:           ctr.DB(),
			Store:        ctr.Store(),
			CertService:  ctr.CertificateService(),
			AuditService: ctr.AuditLogService(),
			StatsService: ctr.StatisticsService(),
			Hub:          ctr.Hub(),
			Validator:    ctr.Validator(),
		})

		// 自定义 NoRoute 处理器,返回 JSON 格式的 404
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})

		// 7. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			logger.Infof("Server starting on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("Failed to start server: %v", err)
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("Shutting down server...")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Fatalf("Server forced to shutdown: %v", err)
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
}
