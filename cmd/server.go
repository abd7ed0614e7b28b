/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/api"
	"github.com/mautops/procurement-gin/internal/config"
	"github.com/mautops/procurement-gin/internal/container"
	"github.com/mautops/procurement-gin/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// replayLimit 启动时重新投递的未完成事件数量上限
const replayLimit = 500

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Procurement Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for purchase requests and purchase orders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		cfg, configPath, err := LoadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		// 2. 日志
		log, err := logger.NewFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.SetDefault(log)
		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 3. 链路追踪
		if cfg.Tracing.Enabled {
			if err := api.InitTracing(api.TracingOptions{
				Endpoint:    cfg.Tracing.JaegerEndpoint,
				Environment: cfg.Env,
				SampleRatio: cfg.Tracing.SampleRatio,
			}); err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
		}

		// 4. 初始化容器
		ctr, err := container.NewContainer(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 配置文件变更时只热更新日志级别
		if configPath != "" {
			watcher := config.NewWatcher(cfg, configPath, log)
			watcher.OnChange(func(old, updated *config.Config) {
				if old.Log.Level != updated.Log.Level {
					log.SetLevel(logger.ParseLevel(updated.Log.Level))
					log.WithField("level", updated.Log.Level).Info("log level changed")
				}
			})
			if err := watcher.Start(); err != nil {
				log.WithError(err).Warn("config watcher disabled")
			}
			defer watcher.Stop()
		}

		if collector := ctr.Collector(); collector != nil {
			collector.Start()
		}
		replayed, err := ctr.EventHandler().Replay(cmd.Context(), replayLimit)
		if err != nil {
			log.WithError(err).Warn("failed to replay pending events")
		} else if replayed > 0 {
			log.WithField("count", replayed).Info("replayed pending events")
		}

		// 5. 设置路由
		router := api.SetupRoutes(routerDeps(ctr, cfg, log))

		// 6. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		}

		log.Info("shutting down server")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("server forced to shutdown")
		}
		if cfg.Tracing.Enabled {
			if err := api.ShutdownTracing(ctx); err != nil {
				log.WithError(err).Warn("failed to flush traces")
			}
		}

		log.Info("server exited")
		return nil
	},
}

// routerDeps 从容器组装路由依赖
func routerDeps(ctr *container.Container, cfg *config.Config, log logrus.FieldLogger) api.RouterDeps {
	deps := api.RouterDeps{
		Config:           cfg,
		DB:               ctr.DB(),
		Log:              log,
		Hub:              ctr.Hub(),
		Auth:             ctr.AuthChain(),
		PurchaseRequests: ctr.PurchaseRequestService(),
		History:          ctr.HistoryService(),
		PurchaseOrders:   ctr.PurchaseOrderService(),
		Projects:         ctr.ProjectService(),
		Budget:           ctr.BudgetService(),
		Statistics:       ctr.StatisticsService(),
		Users:            ctr.UserService(),
		Store:            ctr.Store(),
	}
	// nil 指针不能直接赋给接口
	if fga := ctr.OpenFGAClient(); fga != nil {
		deps.FGA = fga
	}
	return deps
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
