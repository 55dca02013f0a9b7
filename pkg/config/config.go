package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	Log       LogConfig       `json:"log" yaml:"log"`
	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json or text
}

// OptimizerConfig 优化器配置
type OptimizerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// StrictHints 未注册或选项非法的 hint 直接报错，否则只告警
	StrictHints bool `json:"strict_hints" yaml:"strict_hints"`
	// PropagateHints 优化前把查询块上的 hint 下推到适用的算子
	PropagateHints bool            `json:"propagate_hints" yaml:"propagate_hints"`
	Heuristic      HeuristicConfig `json:"heuristic" yaml:"heuristic"`
	Volcano        VolcanoConfig   `json:"volcano" yaml:"volcano"`
	Cost           CostConfig      `json:"cost" yaml:"cost"`
}

// HeuristicConfig 启发式优化器配置
type HeuristicConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	MaxIterations int           `json:"max_iterations" yaml:"max_iterations"`
	Phases        []PhaseConfig `json:"phases" yaml:"phases"`
}

// PhaseConfig 启发式程序中的一个阶段，按配置顺序执行
type PhaseConfig struct {
	Name        string   `json:"name" yaml:"name"`
	Order       string   `json:"order" yaml:"order"`             // top_down (默认), bottom_up or arbitrary
	Termination string   `json:"termination" yaml:"termination"` // fixpoint (默认) or once
	Rules       []string `json:"rules" yaml:"rules"`
}

// VolcanoConfig 代价优化器配置
type VolcanoConfig struct {
	MaxRounds int           `json:"max_rounds" yaml:"max_rounds"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
	// ExcludeConvertersByHint hint 的禁用规则是否同样作用于属性转换
	ExcludeConvertersByHint bool     `json:"exclude_converters_by_hint" yaml:"exclude_converters_by_hint"`
	Rules                   []string `json:"rules" yaml:"rules"`
}

// CostConfig 成本模型配置
type CostConfig struct {
	Model           string           `json:"model" yaml:"model"` // default or adaptive
	CPUFactor       float64          `json:"cpu_factor" yaml:"cpu_factor"`
	IOFactor        float64          `json:"io_factor" yaml:"io_factor"`
	MemoryFactor    float64          `json:"memory_factor" yaml:"memory_factor"`
	DefaultRowCount int64            `json:"default_row_count" yaml:"default_row_count"`
	Tables          map[string]int64 `json:"tables" yaml:"tables"`
	// Statistics 从数据库收集行数，表中已配置的行数优先
	Statistics StatisticsConfig `json:"statistics" yaml:"statistics"`
}

// UnmarshalJSON 超时时间可写成 "250ms" 这样的字符串或纳秒整数，与 YAML 一致
func (c *VolcanoConfig) UnmarshalJSON(data []byte) error {
	type plain VolcanoConfig
	aux := struct {
		*plain
		Timeout any `json:"timeout"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return decodeDuration(aux.Timeout, &c.Timeout)
}

// StatisticsConfig 统计信息来源
type StatisticsConfig struct {
	Driver  string        `json:"driver" yaml:"driver"` // mysql, postgres or sqlite; empty disables collection
	DSN     string        `json:"dsn" yaml:"dsn"`
	Tables  []string      `json:"tables" yaml:"tables"` // empty means every base table
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// UnmarshalJSON 同 VolcanoConfig
func (c *StatisticsConfig) UnmarshalJSON(data []byte) error {
	type plain StatisticsConfig
	aux := struct {
		*plain
		Timeout any `json:"timeout"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return decodeDuration(aux.Timeout, &c.Timeout)
}

func decodeDuration(raw any, dst *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return fmt.Errorf("无效的超时时间 %v: %w", raw, err)
	}
	*dst = d
	return nil
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Optimizer: OptimizerConfig{
			Enabled:        true,
			StrictHints:    false,
			PropagateHints: true,
			Heuristic: HeuristicConfig{
				Enabled:       true,
				MaxIterations: 1000,
				Phases: []PhaseConfig{
					{
						Name:        "logical",
						Order:       "top_down",
						Termination: "fixpoint",
						Rules: []string{
							"FilterMergeRule",
							"ProjectMergeRule",
							"ProjectRemoveRule",
							"FilterProjectTransposeRule",
							"AggregateReduceFunctionsRule",
						},
					},
				},
			},
			Volcano: VolcanoConfig{
				MaxRounds:               100,
				Timeout:                 5 * time.Second,
				ExcludeConvertersByHint: false,
				Rules: []string{
					"EnumerableTableScanRule",
					"EnumerableProjectRule",
					"EnumerableFilterRule",
					"EnumerableCalcRule",
					"EnumerableAggregateRule",
					"EnumerableSortRule",
					"EnumerableHashJoinRule",
					"EnumerableMergeJoinRule",
					"EnumerableNestedLoopJoinRule",
				},
			},
			Cost: CostConfig{
				Model:           "default",
				CPUFactor:       0.01,
				IOFactor:        0.1,
				MemoryFactor:    0.001,
				DefaultRowCount: 100,
				Statistics: StatisticsConfig{
					Timeout: 5 * time.Second,
				},
			},
		},
	}
}

// LoadConfig 从文件加载配置，按扩展名选择 JSON 或 YAML
func LoadConfig(configPath string) (*Config, error) {
	// 如果没有指定配置文件，使用默认配置
	if configPath == "" {
		return DefaultConfig(), nil
	}

	// 检查配置文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault 尝试从常见位置加载配置文件
func LoadConfigOrDefault() *Config {
	// 尝试的配置文件路径
	possiblePaths := []string{
		"optimizer.json",
		"optimizer.yaml",
		"./config/optimizer.json",
		"./config/optimizer.yaml",
	}

	// 尝试从环境变量获取配置文件路径
	if envPath := os.Getenv("RELOPT_CONFIG"); envPath != "" {
		if config, err := LoadConfig(envPath); err == nil {
			return config
		}
	}

	// 尝试从常见位置加载
	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if config, err := LoadConfig(absPath); err == nil {
				return config
			}
		}
	}

	// 使用默认配置
	return DefaultConfig()
}

// validateConfig 验证配置，汇总全部错误
func validateConfig(config *Config) error {
	var errs error

	switch strings.ToLower(config.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, fmt.Errorf("无效的日志级别: %s", config.Log.Level))
	}

	switch config.Log.Format {
	case "json", "text":
	default:
		errs = multierr.Append(errs, fmt.Errorf("无效的日志格式: %s", config.Log.Format))
	}

	opt := config.Optimizer
	if opt.Heuristic.MaxIterations < 1 {
		errs = multierr.Append(errs, fmt.Errorf("启发式优化最大迭代次数必须大于0"))
	}

	for i, phase := range opt.Heuristic.Phases {
		name := phase.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		switch strings.ToLower(phase.Order) {
		case "", "top_down", "bottom_up", "arbitrary":
		default:
			errs = multierr.Append(errs, fmt.Errorf("启发式阶段 %s 的遍历顺序无效: %s", name, phase.Order))
		}
		switch strings.ToLower(phase.Termination) {
		case "", "fixpoint", "once":
		default:
			errs = multierr.Append(errs, fmt.Errorf("启发式阶段 %s 的结束条件无效: %s", name, phase.Termination))
		}
		if len(phase.Rules) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("启发式阶段 %s 没有规则", name))
		}
	}

	if opt.Volcano.MaxRounds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("代价优化最大轮数不能为负数"))
	}

	if opt.Volcano.Timeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("代价优化超时时间不能为负数"))
	}

	switch opt.Cost.Model {
	case "default", "adaptive":
	default:
		errs = multierr.Append(errs, fmt.Errorf("无效的成本模型: %s", opt.Cost.Model))
	}

	if opt.Cost.CPUFactor <= 0 || opt.Cost.IOFactor <= 0 || opt.Cost.MemoryFactor < 0 {
		errs = multierr.Append(errs, fmt.Errorf("成本因子必须大于0"))
	}

	if opt.Cost.DefaultRowCount < 1 {
		errs = multierr.Append(errs, fmt.Errorf("默认行数必须大于0"))
	}

	for table, rows := range opt.Cost.Tables {
		if rows < 0 {
			errs = multierr.Append(errs, fmt.Errorf("表 %s 的行数不能为负数", table))
		}
	}

	stats := opt.Cost.Statistics
	switch stats.Driver {
	case "":
	case "mysql", "postgres", "sqlite":
		if stats.DSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("统计信息数据源缺少 DSN"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("不支持的统计信息驱动: %s", stats.Driver))
	}
	if stats.Timeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("统计信息收集超时时间不能为负数"))
	}

	return errs
}
