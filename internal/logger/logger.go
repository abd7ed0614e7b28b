package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mautops/procurement-gin/internal/config"
	"github.com/sirupsen/logrus"
)

const serviceName = "procurement-gin"

var (
	defaultLogger *logrus.Logger
	defaultOnce   sync.Once
)

// New 创建 JSON 格式的日志记录器
func New() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(jsonFormatter())
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stdout)
	return l
}

// NewFromConfig 根据配置创建日志记录器
func NewFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	l := logrus.New()

	if cfg.Format == "json" {
		l.SetFormatter(jsonFormatter())
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FullTimestamp:   true,
		})
	}

	l.SetLevel(ParseLevel(cfg.Level))

	var writers []io.Writer
	if cfg.Output == "stdout" || cfg.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(filepath.Join(logDir, serviceName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	l.SetOutput(io.MultiWriter(writers...))

	l.AddHook(&defaultFieldsHook{
		fields: logrus.Fields{"service": serviceName},
	})

	return l, nil
}

// ParseLevel 解析日志级别, 无法识别时使用 info
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
}

// defaultFieldsHook 为每条日志添加默认字段
type defaultFieldsHook struct {
	fields logrus.Fields
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		entry.Data[k] = v
	}
	return nil
}

// Get 获取默认日志记录器
func Get() *logrus.Logger {
	defaultOnce.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New()
		}
	})
	return defaultLogger
}

// SetDefault 替换默认日志记录器, 需在服务启动时调用
func SetDefault(l *logrus.Logger) {
	defaultOnce.Do(func() {})
	defaultLogger = l
}
