package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger 包装 zerolog.Logger，统一组件字段。
type Logger struct {
	zerolog.Logger
}

// Config 是日志配置。Format 取 "console" 或 "json"。
type Config struct {
	Level      string
	Format     string
	TimeFormat string
	// Output 为空时写 stderr，保证 stdout 只输出报告/命令结果。
	Output io.Writer
}

// DefaultConfig 返回默认日志配置。
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
	}
}

// New 按配置创建 Logger。
func New(cfg Config) *Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	l := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	return &Logger{Logger: l}
}

// Nop 返回丢弃全部输出的 Logger，测试和未注入日志的调用方使用。
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent 返回附带 component 字段的子 Logger。
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With().Str("component", component).Logger()}
}

// WithScan 返回附带 scan_id 字段的子 Logger。
func (l *Logger) WithScan(scanID string) *Logger {
	return &Logger{Logger: l.With().Str("scan_id", scanID).Logger()}
}

// OrNop 允许对 nil *Logger 安全取值。
func (l *Logger) OrNop() *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
