package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
	TRACE
)

var levelNames = map[LogLevel]string{
	ERROR: "ERROR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
	TRACE: "TRACE",
}

// Global is the process-wide logger used by library packages. It is nil until
// the binary installs one, so callers guard every use.
var Global *Logger

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Context   map[string]interface{}
}

// Logger provides structured logging with levels
type Logger struct {
	mu              sync.RWMutex
	level           LogLevel
	logDir          string
	fileBase        string
	currentFile     *os.File
	currentFilePath string
	buffer          []LogEntry
	maxBufferSize   int
	rotationPolicy  RotationPolicy
	rateLimiters    map[string]*rateLimiter
	console         io.Writer
	traceTags       map[string]bool
	onLogCallback   func(LogEntry)
}

// RotationPolicy defines when and how to rotate log files
type RotationPolicy struct {
	Enabled    bool
	MaxSizeMB  int
	MaxAgeDays int
	MaxFiles   int
}

type rateLimiter struct {
	lastLog  time.Time
	interval time.Duration
}

// New creates a Logger writing to <logDir>/printwatch.log. An empty logDir
// disables file output; entries still reach the console and the ring buffer.
func New(level LogLevel, logDir string, maxBufferSize int) *Logger {
	if maxBufferSize <= 0 {
		maxBufferSize = 500
	}
	return &Logger{
		level:         level,
		logDir:        logDir,
		fileBase:      "printwatch",
		buffer:        make([]LogEntry, 0, maxBufferSize),
		maxBufferSize: maxBufferSize,
		rateLimiters:  make(map[string]*rateLimiter),
		console:       os.Stderr,
		traceTags:     make(map[string]bool),
		rotationPolicy: RotationPolicy{
			Enabled:    true,
			MaxSizeMB:  20,
			MaxAgeDays: 7,
			MaxFiles:   10,
		},
	}
}

// SetConsole redirects console output; nil disables it.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
}

// SetOnLogCallback registers a function invoked for every accepted entry.
func (l *Logger) SetOnLogCallback(callback func(LogEntry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLogCallback = callback
}

// SetRotationPolicy configures log rotation
func (l *Logger) SetRotationPolicy(policy RotationPolicy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotationPolicy = policy
}

func (l *Logger) Error(msg string, context ...interface{}) { l.log(ERROR, msg, context...) }
func (l *Logger) Warn(msg string, context ...interface{})  { l.log(WARN, msg, context...) }
func (l *Logger) Info(msg string, context ...interface{})  { l.log(INFO, msg, context...) }
func (l *Logger) Debug(msg string, context ...interface{}) { l.log(DEBUG, msg, context...) }
func (l *Logger) Trace(msg string, context ...interface{}) { l.log(TRACE, msg, context...) }

// WarnRateLimited logs a warning at most once per interval for the given key.
func (l *Logger) WarnRateLimited(key string, interval time.Duration, msg string, context ...interface{}) {
	l.mu.Lock()
	limiter, exists := l.rateLimiters[key]
	if !exists {
		limiter = &rateLimiter{interval: interval}
		l.rateLimiters[key] = limiter
	}
	now := time.Now()
	if now.Sub(limiter.lastLog) < limiter.interval {
		l.mu.Unlock()
		return
	}
	limiter.lastLog = now
	l.mu.Unlock()

	l.log(WARN, msg, context...)
}

// TraceTag logs at TRACE only if the tag is enabled. With no tags enabled,
// every trace message is logged.
// Usage: logger.TraceTag("brother_decode", "maintenance buffer", "len", 106)
func (l *Logger) TraceTag(tag string, msg string, context ...interface{}) {
	l.mu.RLock()
	enabled := l.traceTags[tag]
	anyTagsEnabled := len(l.traceTags) > 0
	l.mu.RUnlock()

	if !anyTagsEnabled || enabled {
		l.log(TRACE, msg, append(context, "tag", tag)...)
	}
}

// TraceTagEnabled reports whether TraceTag(tag, ...) would be written. Use it
// to skip work done only to build trace context.
func (l *Logger) TraceTagEnabled(tag string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.level < TRACE {
		return false
	}
	return len(l.traceTags) == 0 || l.traceTags[tag]
}

// EnableTraceTag enables trace logging for a specific tag
func (l *Logger) EnableTraceTag(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traceTags[tag] = true
}

func (l *Logger) log(level LogLevel, msg string, context ...interface{}) {
	l.mu.Lock()

	if level > l.level {
		l.mu.Unlock()
		return
	}

	ctx := make(map[string]interface{}, len(context)/2)
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			ctx[key] = context[i+1]
		}
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Context:   ctx,
	}

	if len(l.buffer) >= l.maxBufferSize {
		l.buffer = l.buffer[1:]
	}
	l.buffer = append(l.buffer, entry)

	line := formatLogEntry(entry)
	if l.console != nil {
		fmt.Fprintln(l.console, line)
	}
	l.writeToFile(line)

	callback := l.onLogCallback
	l.mu.Unlock()

	// outside the lock so the callback may log
	if callback != nil {
		callback(entry)
	}
}

// writeToFile must be called with l.mu held.
func (l *Logger) writeToFile(line string) {
	if l.logDir == "" {
		return
	}
	if err := os.MkdirAll(l.logDir, 0755); err != nil {
		return
	}

	if l.currentFile == nil {
		filename := filepath.Join(l.logDir, l.fileBase+".log")
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return
		}
		l.currentFile = f
		l.currentFilePath = filename
	}

	l.currentFile.WriteString(line + "\n")

	if l.shouldRotate() {
		l.rotate()
	}
}

// formatLogEntry renders "<ts> [LEVEL] msg k=v ..." with keys sorted.
func formatLogEntry(entry LogEntry) string {
	var b strings.Builder
	b.WriteString(entry.Timestamp.Format("2006-01-02T15:04:05-07:00"))
	b.WriteString(" [")
	b.WriteString(levelNames[entry.Level])
	b.WriteString("] ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Context))
	for k := range entry.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Context[k])
	}
	return b.String()
}

func (l *Logger) shouldRotate() bool {
	if !l.rotationPolicy.Enabled || l.currentFile == nil || l.rotationPolicy.MaxSizeMB <= 0 {
		return false
	}
	stat, err := l.currentFile.Stat()
	if err != nil {
		return false
	}
	return stat.Size() >= int64(l.rotationPolicy.MaxSizeMB)*1024*1024
}

func (l *Logger) rotate() {
	if l.currentFile != nil {
		l.currentFile.Close()
		l.currentFile = nil

		if l.currentFilePath != "" {
			timestamp := time.Now().Format("20060102_150405")
			backupPath := filepath.Join(l.logDir, fmt.Sprintf("%s_%s.log", l.fileBase, timestamp))
			os.Rename(l.currentFilePath, backupPath)
		}
	}
	l.cleanOldFiles()
}

func (l *Logger) cleanOldFiles() {
	files, err := filepath.Glob(filepath.Join(l.logDir, l.fileBase+"_*.log"))
	if err != nil {
		return
	}
	sort.Strings(files)

	if l.rotationPolicy.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -l.rotationPolicy.MaxAgeDays)
		kept := files[:0]
		for _, file := range files {
			if stat, err := os.Stat(file); err == nil && stat.ModTime().Before(cutoff) {
				os.Remove(file)
				continue
			}
			kept = append(kept, file)
		}
		files = kept
	}

	if l.rotationPolicy.MaxFiles > 0 && len(files) > l.rotationPolicy.MaxFiles {
		for i := 0; i < len(files)-l.rotationPolicy.MaxFiles; i++ {
			os.Remove(files[i])
		}
	}
}

// GetBuffer returns a copy of the in-memory log buffer
func (l *Logger) GetBuffer() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	buffer := make([]LogEntry, len(l.buffer))
	copy(buffer, l.buffer)
	return buffer
}

// Close closes the current log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentFile != nil {
		err := l.currentFile.Close()
		l.currentFile = nil
		return err
	}
	return nil
}

// LevelFromString converts a string to a LogLevel, defaulting to INFO.
func LevelFromString(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return ERROR
	case "WARN", "WARNING":
		return WARN
	case "DEBUG":
		return DEBUG
	case "TRACE":
		return TRACE
	default:
		return INFO
	}
}

// LevelToString converts a LogLevel to a string
func LevelToString(level LogLevel) string {
	return levelNames[level]
}
