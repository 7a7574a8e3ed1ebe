// Package config loads the mission control service configuration from
// defaults, an optional YAML file, environment variables and command
// line overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fsl/mission-control/pkg/logger"
	"fsl/mission-control/pkg/types"
)

// Config represents the complete configuration for mission control.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Services  ServicesConfig  `yaml:"services"`
	Mission   MissionConfig   `yaml:"mission"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   logger.Config   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"MC_SERVER_ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"MC_SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"MC_SERVER_WRITE_TIMEOUT"`
	EnableCORS   bool          `yaml:"enable_cors" env:"MC_SERVER_ENABLE_CORS"`
}

// ServicesConfig holds the addresses and timeouts of collaborating
// services. Fallback URLs are used whenever discovery cannot resolve a
// service.
type ServicesConfig struct {
	ControllerBaseURL   string        `yaml:"controller_base_url" env:"MC_CONTROLLER_BASE_URL"`
	PlanFallbackURL     string        `yaml:"plan_fallback_url" env:"MC_PLAN_FALLBACK_URL"`
	AnalyzeFallbackURL  string        `yaml:"analyze_fallback_url" env:"MC_ANALYZE_FALLBACK_URL"`
	DiscoveryTimeout    time.Duration `yaml:"discovery_timeout" env:"MC_DISCOVERY_TIMEOUT"`
	PlanTimeout         time.Duration `yaml:"plan_timeout" env:"MC_PLAN_TIMEOUT"`
	WorkflowTimeout     time.Duration `yaml:"workflow_timeout" env:"MC_WORKFLOW_TIMEOUT"`
	StatsTimeout        time.Duration `yaml:"stats_timeout" env:"MC_STATS_TIMEOUT"`
	WorkerTimeout       time.Duration `yaml:"worker_timeout" env:"MC_WORKER_TIMEOUT"`
	PipelineStepTimeout time.Duration `yaml:"pipeline_step_timeout" env:"MC_PIPELINE_STEP_TIMEOUT"`
}

// MissionConfig holds mission creation defaults handed to clients that
// start a task without a full platform roster.
type MissionConfig struct {
	TingCount int            `yaml:"ting_count" json:"ting_count" env:"MC_MISSION_TING_COUNT"`
	Tings     []types.Ting   `yaml:"tings" json:"tings"`
	TaskArea  types.TaskArea `yaml:"task_area" json:"task_area"`
}

// RetentionConfig controls pruning of finished tasks. Disabled by
// default: the registry keeps every task for the life of the process.
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled" env:"MC_RETENTION_ENABLED"`
	MaxAge   time.Duration `yaml:"max_age" env:"MC_RETENTION_MAX_AGE"`
	Interval time.Duration `yaml:"interval" env:"MC_RETENTION_INTERVAL"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":9000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Services: ServicesConfig{
			ControllerBaseURL:   "http://127.0.0.1:8080",
			PlanFallbackURL:     "http://127.0.0.1:4100",
			AnalyzeFallbackURL:  "http://127.0.0.1:4102",
			DiscoveryTimeout:    3 * time.Second,
			PlanTimeout:         5 * time.Second,
			WorkflowTimeout:     5 * time.Second,
			StatsTimeout:        5 * time.Second,
			WorkerTimeout:       60 * time.Second,
			PipelineStepTimeout: 60 * time.Second,
		},
		Mission: MissionConfig{
			TingCount: 4,
			Tings:     DefaultTings(),
			TaskArea: types.TaskArea{
				TopLeft:     types.Position{Lat: 30.6775, Lon: 122.4950},
				BottomRight: types.Position{Lat: 30.6520, Lon: 122.5250},
			},
		},
		Retention: RetentionConfig{
			Enabled:  false,
			MaxAge:   24 * time.Hour,
			Interval: time.Hour,
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// DefaultTings returns the built-in four-platform roster.
func DefaultTings() []types.Ting {
	return []types.Ting{
		{
			ID:          "usv-1",
			Name:        "USV 1",
			Position:    &types.Position{Lat: 30.6820, Lon: 122.5080},
			SpeedMPS:    40.0,
			SonarRangeM: 300.0,
			SuspectProb: 0.45,
			ConfirmProb: 0.55,
		},
		{
			ID:          "usv-2",
			Name:        "USV 2",
			Position:    &types.Position{Lat: 30.6815, Lon: 122.5100},
			SpeedMPS:    40.0,
			SonarRangeM: 300.0,
			SuspectProb: 0.4,
			ConfirmProb: 0.6,
		},
		{
			ID:          "usv-3",
			Name:        "USV 3",
			Position:    &types.Position{Lat: 30.6825, Lon: 122.5120},
			SpeedMPS:    40.0,
			SonarRangeM: 300.0,
			SuspectProb: 0.35,
			ConfirmProb: 0.65,
		},
		{
			ID:          "usv-4",
			Name:        "USV 4",
			Position:    &types.Position{Lat: 30.6810, Lon: 122.5090},
			SpeedMPS:    40.0,
			SonarRangeM: 300.0,
			SuspectProb: 0.5,
			ConfirmProb: 0.5,
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		cmdArgs: make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithCmdArgs sets command-line arguments for configuration override.
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	if err := l.applyCmdOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用命令行参数覆盖失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	return l.applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", envTag, fieldType.Name, err)
		}
	}

	return nil
}

// applyCmdOverrides applies command-line argument overrides to the configuration.
func (l *Loader) applyCmdOverrides(cfg *Config) error {
	for key, value := range l.cmdArgs {
		if err := l.setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a configuration value by dot-notation path.
func (l *Loader) setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		fieldName := strings.ReplaceAll(part, "_", "")

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName) || strings.EqualFold(name, part)
		})

		if !field.IsValid() {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("无效的浮点数: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}
