package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kasuganosora/relopt/pkg/config"
)

// NewLogger 按配置创建日志，输出到标准输出
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	return NewLoggerWithOutput(cfg, os.Stdout)
}

// NewLoggerWithOutput 创建带输出的日志
// json 格式使用生产环境编码，text 格式使用开发环境的控制台编码
func NewLoggerWithOutput(cfg config.LogConfig, output io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "text", "":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("无效的日志格式: %s", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)
	return zap.New(core), nil
}

// ParseLevel 解析日志级别，空字符串视为 info
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("无效的日志级别: %s", level)
	}
	return l, nil
}

// OrNop 在 logger 为空时返回空日志
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
