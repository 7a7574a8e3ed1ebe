// Package cmd 提供 mission-control CLI 的命令实现
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是启动时显示的 ASCII 艺术
	Banner = `
   __  ___ ______
  /  |/  // ____/ Mission Control %s
 / /|_/ // /
/ /  / // /___
/_/  /_/ \____/
`
)

var (
	// 全局配置
	cfgFile string
	debug   bool
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "mission-control",
	Short: "扫雷任务编排服务",
	Long: `mission-control 是模拟扫雷作业的任务编排服务，
负责扫雷、查证、灭雷、评估四个阶段的调度，
并通过服务发现与作业规划、统计分析等服务协作。`,
	Version: Version,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "启用调试日志")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// 自定义版本模板
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}
