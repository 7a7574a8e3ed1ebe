package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"fsl/mission-control/internal/config"
	"fsl/mission-control/internal/discovery"
	"fsl/mission-control/internal/pipeline"
	"fsl/mission-control/pkg/logger"
)

var (
	// pipeline 命令的 flags
	pipelinePoint1 string
	pipelinePoint2 string
	pipelineCheck  bool
)

// pipelineCmd 是 pipeline 子命令
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "执行决策流水线演示",
	Long: `从命令行执行完整的决策流水线：
航路规划、航行控制、声纳探测、目标识别与打击。
所有流水线服务均通过服务发现定位，结果以 JSON 输出。`,
	Example: `  # 执行完整流水线
  mission-control pipeline --point1 122.50,30.68 --point2 122.52,30.66

  # 只检查流水线服务健康状态
  mission-control pipeline --check`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().StringVar(&pipelinePoint1, "point1", "", "起点坐标，格式: 经度,纬度")
	pipelineCmd.Flags().StringVar(&pipelinePoint2, "point2", "", "终点坐标，格式: 经度,纬度")
	pipelineCmd.Flags().BoolVar(&pipelineCheck, "check", false, "只查询各服务健康状态")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().WithConfigPath(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	logger.Init(&cfg.Logging)
	defer logger.Sync()

	locator := discovery.NewLocator(cfg.Services.ControllerBaseURL, cfg.Services.DiscoveryTimeout)
	caller := pipeline.NewCaller(locator, cfg.Services.PipelineStepTimeout)

	if pipelineCheck {
		fmt.Println(oj.JSON(caller.Status(), 2))
		return nil
	}

	point1, err := parsePoint(pipelinePoint1)
	if err != nil {
		return fmt.Errorf("无效的 point1: %w", err)
	}
	point2, err := parsePoint(pipelinePoint2)
	if err != nil {
		return fmt.Errorf("无效的 point2: %w", err)
	}

	result := caller.ExecuteFullWorkflow(point1, point2, nil)
	fmt.Println(oj.JSON(result, 2))

	if !result.Success {
		return fmt.Errorf("流水线执行失败")
	}
	return nil
}

// parsePoint 解析 "经度,纬度" 形式的坐标
func parsePoint(value string) (pipeline.Point, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return pipeline.Point{}, fmt.Errorf("期望格式 经度,纬度，实际: %q", value)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return pipeline.Point{}, fmt.Errorf("无效的经度: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return pipeline.Point{}, fmt.Errorf("无效的纬度: %w", err)
	}
	if lon == 0 || lat == 0 {
		return pipeline.Point{}, fmt.Errorf("经纬度不能为 0")
	}
	return pipeline.Point{Longitude: lon, Latitude: lat}, nil
}
