package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogInfo 日志实例
type LogInfo struct {
	log       *zap.Logger
	debugMode atomic.Bool
}

var (
	// Log 日志实例
	Log = NewNop()
)

type options struct {
	console bool
}

// Option Initialize option
type Option func(*options)

// WithoutConsole write only to the log file, for interactive programs sharing stdout
func WithoutConsole() Option {
	return func(o *options) { o.console = false }
}

// Initialize 按日期分文件的日志初始化
func Initialize(serviceName, logDir string, opts ...Option) *LogInfo {
	o := options{console: true}
	for _, opt := range opts {
		opt(&o)
	}

	l := new(LogInfo)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic(fmt.Sprintf("Failed to create log directory: %v", err))
	}
	file := getFileWriter(filepath.Join(logDir, fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))))

	out := file
	if o.console {
		out = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), file)
	}

	// INFO / WARN / ERROR: JSON 輸出
	mainCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		out,
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.InfoLevel
		}),
	)

	// DEBUG: 由 debugMode 控制
	debugCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		out,
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level == zapcore.DebugLevel && l.IsDebugMode()
		}),
	)

	l.log = zap.New(zapcore.NewTee(mainCore, debugCore), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))

	return l
}

// NewNop create a logger which discards everything
func NewNop() *LogInfo {
	return &LogInfo{log: zap.NewNop()}
}

// SetNewNop replace the global logger with a no-op logger, used by tests
func SetNewNop() {
	Log = NewNop()
}

func getFileWriter(logFile string) zapcore.WriteSyncer {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("Failed to open or create log file: %v", err))
	}
	return zapcore.AddSync(file)
}

// SetDebugMode toggle debug output at runtime
func (l *LogInfo) SetDebugMode(status bool) {
	l.debugMode.Store(status)
}

// IsDebugMode report the current debug mode
func (l *LogInfo) IsDebugMode() bool {
	return l.debugMode.Load()
}

// Info 输出 INFO 级别日志
func (l *LogInfo) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Error 输出 ERROR 级别日志
func (l *LogInfo) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Debug 输出 DEBUG 级别日志
func (l *LogInfo) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Warn 输出 WARN 级别日志
func (l *LogInfo) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Sync 刷新日志缓冲区
func (l *LogInfo) Sync() {
	// stdout sync 在部分平台會回 EINVAL, 忽略
	_ = l.log.Sync()
}

// Fatal 输出错误日志并退出程序
func (l *LogInfo) Fatal(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
	l.Sync()
	os.Exit(1)
}
