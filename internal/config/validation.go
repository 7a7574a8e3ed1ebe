package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Address == "" {
		errs = append(errs, "server.address 不能为空")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout 必须大于 0")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout 必须大于 0")
	}

	for name, url := range map[string]string{
		"services.controller_base_url":  c.Services.ControllerBaseURL,
		"services.plan_fallback_url":    c.Services.PlanFallbackURL,
		"services.analyze_fallback_url": c.Services.AnalyzeFallbackURL,
	} {
		if url == "" {
			errs = append(errs, name+" 不能为空")
		} else if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			errs = append(errs, name+" 必须以 http:// 或 https:// 开头")
		}
	}

	for name, d := range map[string]time.Duration{
		"services.discovery_timeout":     c.Services.DiscoveryTimeout,
		"services.plan_timeout":          c.Services.PlanTimeout,
		"services.workflow_timeout":      c.Services.WorkflowTimeout,
		"services.stats_timeout":         c.Services.StatsTimeout,
		"services.worker_timeout":        c.Services.WorkerTimeout,
		"services.pipeline_step_timeout": c.Services.PipelineStepTimeout,
	} {
		if d <= 0 {
			errs = append(errs, name+" 必须大于 0")
		}
	}

	if c.Mission.TingCount <= 0 {
		errs = append(errs, "mission.ting_count 必须大于 0")
	}
	if len(c.Mission.Tings) == 0 {
		errs = append(errs, "mission.tings 不能为空")
	}
	area := c.Mission.TaskArea
	if area.TopLeft.Lat <= area.BottomRight.Lat {
		errs = append(errs, "mission.task_area 上边界纬度必须大于下边界纬度")
	}
	if area.TopLeft.Lon >= area.BottomRight.Lon {
		errs = append(errs, "mission.task_area 左边界经度必须小于右边界经度")
	}

	if c.Retention.Enabled {
		if c.Retention.MaxAge <= 0 {
			errs = append(errs, "retention.max_age 必须大于 0")
		}
		if c.Retention.Interval <= 0 {
			errs = append(errs, "retention.interval 必须大于 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置校验失败: %s", strings.Join(errs, "; "))
	}
	return nil
}
