// Package app 管理默认配置、配置文件/环境变量加载和版本信息。
package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"privacy-inspector/internal/platform/logger"
	"privacy-inspector/internal/services/privacy"
)

// EnvPrefix 是环境变量前缀，例如 PRIVACY_INSPECTOR_SCAN_WORKERS。
const EnvPrefix = "PRIVACY_INSPECTOR"

// Config 是应用配置，字段与 config.yaml 键一一对应。
type Config struct {
	DBPath     string        `mapstructure:"db_path"`
	ReportsDir string        `mapstructure:"reports_dir"`
	ExportDir  string        `mapstructure:"export_dir"`
	Dataset    DatasetConfig `mapstructure:"dataset"`
	Matcher    MatcherConfig `mapstructure:"matcher"`
	Rules      RulesConfig   `mapstructure:"rules"`
	Scan       ScanConfig    `mapstructure:"scan"`
	Serve      ServeConfig   `mapstructure:"serve"`
	Log        LogConfig     `mapstructure:"log"`
}

// DatasetConfig 描述泄露数据集文件。未在 Priorities 中列出的文件优先级为 0。
type DatasetConfig struct {
	Paths      []string         `mapstructure:"paths"`
	Priorities []SourcePriority `mapstructure:"priorities"`
}

// SourcePriority 用列表而不是 map 表达，因为 viper 会把 map 键里的 "." 当作层级分隔符。
type SourcePriority struct {
	File     string `mapstructure:"file"`
	Priority int    `mapstructure:"priority"`
}

// PriorityMap 转换为 dataset.Sources 使用的查找表：原样路径和小写文件名都可以命中。
func (d DatasetConfig) PriorityMap() map[string]int {
	out := make(map[string]int, len(d.Priorities)*2)
	for _, p := range d.Priorities {
		f := strings.TrimSpace(p.File)
		if f == "" {
			continue
		}
		out[f] = p.Priority
		out[strings.ToLower(f)] = p.Priority
	}
	return out
}

type MatcherConfig struct {
	FuzzyEnabled   bool    `mapstructure:"fuzzy_enabled"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

// RulesConfig 中 PermissionTable 为空表示使用内置权限分类表。
type RulesConfig struct {
	PermissionTable string `mapstructure:"permission_table"`
}

type ScanConfig struct {
	Workers     int      `mapstructure:"workers"`
	PrivacyMode string   `mapstructure:"privacy_mode"`
	Formats     []string `mapstructure:"formats"`
}

type ServeConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig 返回本地使用的默认配置。
func DefaultConfig() Config {
	return Config{
		DBPath:     "data/inspector.db",
		ReportsDir: "reports",
		ExportDir:  "data/exports",
		Dataset: DatasetConfig{
			Paths:      []string{"data/dataset.csv"},
			Priorities: []SourcePriority{},
		},
		Matcher: MatcherConfig{
			FuzzyEnabled:   true,
			FuzzyThreshold: 0.90,
		},
		Scan: ScanConfig{
			Workers:     4,
			PrivacyMode: "off",
			Formats:     []string{"json", "html"},
		},
		Serve: ServeConfig{
			Addr:            "127.0.0.1:8787",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults 把 DefaultConfig 写入 viper，使每个键都能被环境变量覆盖。
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("reports_dir", d.ReportsDir)
	v.SetDefault("export_dir", d.ExportDir)
	v.SetDefault("dataset.paths", d.Dataset.Paths)
	v.SetDefault("dataset.priorities", d.Dataset.Priorities)
	v.SetDefault("matcher.fuzzy_enabled", d.Matcher.FuzzyEnabled)
	v.SetDefault("matcher.fuzzy_threshold", d.Matcher.FuzzyThreshold)
	v.SetDefault("rules.permission_table", d.Rules.PermissionTable)
	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("scan.privacy_mode", d.Scan.PrivacyMode)
	v.SetDefault("scan.formats", d.Scan.Formats)
	v.SetDefault("serve.addr", d.Serve.Addr)
	v.SetDefault("serve.read_timeout", d.Serve.ReadTimeout)
	v.SetDefault("serve.write_timeout", d.Serve.WriteTimeout)
	v.SetDefault("serve.shutdown_timeout", d.Serve.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load 读取配置：默认值 < 配置文件 < 环境变量 < 已绑定的命令行参数。
//
// configPath 为空时在 . 和 ./config 下查找 config.yaml，找不到不算错误；
// 显式指定的文件不存在则返回错误。
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查取值范围。
func (c Config) Validate() error {
	if t := c.Matcher.FuzzyThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("matcher.fuzzy_threshold must be in (0, 1], got %v", t)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must be >= 0, got %d", c.Scan.Workers)
	}
	if _, err := privacy.ParseMode(c.Scan.PrivacyMode); err != nil {
		return fmt.Errorf("scan.privacy_mode: %w", err)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path is required")
	}
	return nil
}

// LoggerConfig 转换为日志配置。
func (c Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}
