package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"media-transcode-service/pkg/config"
)

// Fields 结构化日志字段
type Fields = map[string]interface{}

// Logger 基于 logrus 的日志服务
type Logger struct {
	log  *logrus.Logger
	file *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger = newFallback()
)

func newFallback() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{log: l}
}

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	if cfg == nil {
		return &Logger{log: l}
	}
	lc := cfg.Log

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(lc.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(lc.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	}

	out := &Logger{log: l}
	var writer io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(lc.Output)) {
	case "stderr":
		writer = os.Stderr
	case "file", "both":
		name := lc.Filename
		if name == "" {
			name = "logs/media-transcode-service.log"
		}
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err == nil {
			if f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				out.file = f
				if strings.EqualFold(lc.Output, "both") {
					writer = io.MultiWriter(os.Stdout, f)
				} else {
					writer = f
				}
			}
		}
	}
	l.SetOutput(writer)
	return out
}

// NewNop returns a logger that discards everything, used by tests.
func NewNop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{log: l}
}

// SetGlobalLogger 设置全局日志器
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Default 返回全局日志器
func Default() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Close 关闭日志文件
func (l *Logger) Close() {
	if l != nil && l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func (l *Logger) entry(fields []Fields) *logrus.Entry {
	e := logrus.NewEntry(l.log)
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.entry(fields).Debug(msg) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.entry(fields).Info(msg) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.entry(fields).Warn(msg) }
func (l *Logger) Error(msg string, fields ...Fields) { l.entry(fields).Error(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }

// Fatal 记录日志后退出进程
func (l *Logger) Fatal(msg string, fields ...Fields) { l.entry(fields).Fatal(msg) }

// WithFields 返回带字段的 logrus entry，便于在一个请求内复用
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.log.WithFields(logrus.Fields(fields))
}

func Debug(msg string, fields ...Fields) { Default().Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { Default().Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { Default().Warn(msg, fields...) }
func Error(msg string, fields ...Fields) { Default().Error(msg, fields...) }
func Fatal(msg string, fields ...Fields) { Default().Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { Default().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Default().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Default().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Default().Errorf(format, args...) }
