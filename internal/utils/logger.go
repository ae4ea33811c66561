package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // text, json
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // 天
}

var (
	baseMu   sync.RWMutex
	base     = newBaseLogger()
	runID    = uuid.NewString()
	fileSink io.Closer
)

func newBaseLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if os.Getenv("DEBUG") == "true" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// SetupLogging 按配置初始化全局日志，诊断信息始终写入 stderr
func SetupLogging(cfg LogConfig) error {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	if os.Getenv("DEBUG") == "true" {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}

	writers := []io.Writer{os.Stderr}
	var sink io.Closer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(1, cfg.MaxSize),
			MaxBackups: max(0, cfg.MaxBackups),
			MaxAge:     max(0, cfg.MaxAge),
		}
		writers = append(writers, lj)
		sink = lj
	}
	l.SetOutput(io.MultiWriter(writers...))

	baseMu.Lock()
	defer baseMu.Unlock()
	if fileSink != nil {
		fileSink.Close()
	}
	base = l
	fileSink = sink
	return nil
}

// CloseLogging 关闭日志文件
func CloseLogging() {
	baseMu.Lock()
	defer baseMu.Unlock()
	if fileSink != nil {
		fileSink.Close()
		fileSink = nil
	}
}

// SetOutput 替换日志输出，测试用
func SetOutput(w io.Writer) {
	baseMu.RLock()
	defer baseMu.RUnlock()
	base.SetOutput(w)
}

// RunID 本次运行的标识
func RunID() string {
	return runID
}

type Logger struct {
	name   string
	fields logrus.Fields
}

func NewLogger(name string) *Logger {
	return &Logger{name: name}
}

// WithField 返回附带额外字段的日志器
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{name: l.name, fields: fields}
}

func (l *Logger) entry() *logrus.Entry {
	baseMu.RLock()
	b := base
	baseMu.RUnlock()
	return b.WithFields(l.fields).WithField("component", l.name).WithField("run_id", runID)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.entry().Infof(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.entry().Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry().Debugf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry().Warnf(format, args...)
}
