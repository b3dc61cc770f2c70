// Package logging 统一 logrus 的构建方式：JSON 输出、级别由配置决定。
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger 是全局使用的日志类型
type Logger = *logrus.Logger

// Fields 是结构化日志字段
type Fields = logrus.Fields

// New 创建 JSON 格式的 logger。level 无法解析时使用 info。
func New(level string) Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel 解析日志级别，默认 info
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Discard 返回丢弃所有输出的 logger，用于测试或未注入 logger 的组件。
func Discard() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard 在 l 为 nil 时返回 Discard()。
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
