package cblgo

import (
	"sync"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/ref"
)

var (
	loggerOnce sync.Once
	loggerMu   sync.RWMutex
	logger     *zap.Logger
)

// Logger returns the package logger. It is a no-op logger until SetLogger.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		loggerMu.Lock()
		if logger == nil {
			logger = zap.NewNop()
		}
		loggerMu.Unlock()
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger sets the logger of this package and of ref and leakcheck, which
// report use after release, leaked wrappers and leak findings.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerOnce.Do(func() {})
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	ref.SetLogger(l.Named("ref"))
	leakcheck.SetLogger(l.Named("leakcheck"))
}

// LogLevel represents native log levels.
type LogLevel uint8

// Log level constants matching CBLLogLevel.
const (
	LogDebug LogLevel = iota
	LogVerbose
	LogInfo
	LogWarning
	LogError
	LogNone
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogVerbose:
		return "verbose"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return "none"
	}
}

// LogDomain is the subsystem a native log message comes from.
type LogDomain uint8

// Log domains matching CBLLogDomain.
const (
	LogDomainDatabase LogDomain = iota
	LogDomainQuery
	LogDomainReplicator
	LogDomainNetwork
)

// String returns the domain name.
func (d LogDomain) String() string {
	switch d {
	case LogDomainDatabase:
		return "database"
	case LogDomainQuery:
		return "query"
	case LogDomainReplicator:
		return "replicator"
	case LogDomainNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// LogCallback is called for each native log message.
type LogCallback func(domain LogDomain, level LogLevel, message string)

// SetLogCallback sets a handler for native log messages at or above level.
// Pass nil to detach it. It requires libcblite (Init).
func SetLogCallback(level LogLevel, cb LogCallback) error {
	return setNativeLogCallback(level, cb)
}

// ForwardNativeLogs routes native log messages at or above level to Logger.
func ForwardNativeLogs(level LogLevel) error {
	return SetLogCallback(level, zapLogCallback)
}

func zapLogCallback(domain LogDomain, level LogLevel, msg string) {
	l := Logger().Named("native")
	fields := []zap.Field{zap.Stringer("domain", domain)}
	switch level {
	case LogDebug, LogVerbose:
		l.Debug(msg, fields...)
	case LogInfo:
		l.Info(msg, fields...)
	case LogWarning:
		l.Warn(msg, fields...)
	default:
		l.Error(msg, fields...)
	}
}

// SetConsoleLogLevel sets the level of libcblite's own console output.
func SetConsoleLogLevel(level LogLevel) error {
	return setNativeConsoleLevel(level)
}
