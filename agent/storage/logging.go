package storage

import "printwatch/common/logger"

// Log is the package logger. The agent installs it at start-up; when unset
// the package falls back to logger.Global.
var Log *logger.Logger

// SetLogger injects the structured logger from the main application.
func SetLogger(l *logger.Logger) {
	Log = l
}

func active() *logger.Logger {
	if Log != nil {
		return Log
	}
	return logger.Global
}

func logInfo(msg string, kv ...interface{}) {
	if l := active(); l != nil {
		l.Info(msg, kv...)
	}
}

func logWarn(msg string, kv ...interface{}) {
	if l := active(); l != nil {
		l.Warn(msg, kv...)
	}
}

func logDebug(msg string, kv ...interface{}) {
	if l := active(); l != nil {
		l.Debug(msg, kv...)
	}
}
