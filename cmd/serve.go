package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fsl/mission-control/api/rest"
	"fsl/mission-control/internal/config"
	"fsl/mission-control/internal/discovery"
	"fsl/mission-control/internal/mission"
	"fsl/mission-control/internal/pipeline"
	"fsl/mission-control/internal/task"
	"fsl/mission-control/internal/workflow"
	"fsl/mission-control/pkg/logger"
)

var (
	// serve 命令的 flags
	serveAddress       string
	serveControllerURL string
)

// serveCmd 是 serve 子命令
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动任务编排 HTTP 服务",
	Long: `启动任务编排 HTTP 服务。

服务提供任务生命周期管理、阶段调度、服务调用审计，
以及决策流水线演示接口。`,
	Example: `  # 使用默认配置启动
  mission-control serve

  # 指定配置文件与监听地址
  mission-control serve --config config.yaml --address :9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddress, "address", "", "监听地址 (覆盖配置文件)")
	serveCmd.Flags().StringVar(&serveControllerURL, "controller-url", "", "Controller 基础地址 (覆盖配置文件)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cmdArgs := make(map[string]string)
	if serveAddress != "" {
		cmdArgs["server.address"] = serveAddress
	}
	if serveControllerURL != "" {
		cmdArgs["services.controller_base_url"] = serveControllerURL
	}

	cfg, err := config.NewLoader().
		WithConfigPath(cfgFile).
		WithCmdArgs(cmdArgs).
		Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger.Init(&cfg.Logging)
	defer logger.Sync()

	fmt.Printf(Banner, Version)
	fmt.Println()

	store := task.NewStore()
	metrics := mission.NewMetrics()
	locator := discovery.NewLocator(cfg.Services.ControllerBaseURL, cfg.Services.DiscoveryTimeout)
	stages := workflow.NewResolver(cfg.Services.ControllerBaseURL, cfg.Services.WorkflowTimeout)

	notifier := mission.NewNotifier(store, locator, cfg.Services.AnalyzeFallbackURL, cfg.Services.StatsTimeout, metrics)
	notifier.Start()
	defer notifier.Stop()

	manager := mission.NewManager(cfg, store, locator, stages, notifier, metrics)
	proxy := mission.NewControllerProxy(cfg.Services.ControllerBaseURL, cfg.Services.WorkflowTimeout)
	caller := pipeline.NewCaller(locator, cfg.Services.PipelineStepTimeout)

	server := rest.NewServer(cfg.Server, manager, proxy, caller)

	// 可选的已完成任务清理
	retentionDone := make(chan struct{})
	if cfg.Retention.Enabled {
		go func() {
			ticker := time.NewTicker(cfg.Retention.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-retentionDone:
					return
				case <-ticker.C:
					if n := store.PruneFinished(cfg.Retention.MaxAge); n > 0 {
						logger.Info("清理已完成任务", zap.Int("count", n))
					}
				}
			}
		}()
	}
	defer close(retentionDone)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务启动", zap.String("address", cfg.Server.Address))
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务异常退出: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Info("收到退出信号，正在关闭", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭 HTTP 服务失败: %w", err)
	}
	logger.Info("服务已关闭")
	return nil
}
