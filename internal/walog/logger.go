// Package walog provides level-filtered, optionally colorized logging
// for the WAL store and its CLI, in the same shape as the teacher's
// console logger: timestamped lines, level filtering, and automatic
// color detection on TTY writers.
package walog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	levelDebug int = iota
	levelInfo
	levelWarn
	levelError
)

// Logger writes level-filtered, timestamped lines to a writer. It
// satisfies walstore.Logger (Debugf/Infof/Warnf).
type Logger struct {
	writer   io.Writer
	minLevel int
	color    bool
	mu       sync.Mutex
}

// New creates a Logger writing to w at the given minimum level
// ("debug", "info", "warn", "error"; unrecognized values default to
// "info"). Color is enabled automatically when w is a TTY.
func New(w io.Writer, level string) *Logger {
	return &Logger{
		writer:   w,
		minLevel: levelFromString(level),
		color:    isTerminal(w),
	}
}

func levelFromString(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func isTerminal(w io.Writer) bool {
	switch w {
	case os.Stdout:
		return isatty.IsTerminal(os.Stdout.Fd())
	case os.Stderr:
		return isatty.IsTerminal(os.Stderr.Fd())
	default:
		return false
	}
}

func (l *Logger) log(level int, label string, colorAttr color.Attribute, format string, args ...any) {
	if l == nil || l.writer == nil || level < l.minLevel {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("15:04:05")
	msg := fmt.Sprintf(format, args...)

	var line string
	if l.color {
		tag := color.New(colorAttr).Sprint(label)
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, tag, msg)
	} else {
		line = fmt.Sprintf("[%s] [%s] %s\n", ts, label, msg)
	}
	l.writer.Write([]byte(line))
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(levelDebug, "DEBUG", color.FgCyan, format, args...)
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.log(levelInfo, "INFO", color.FgBlue, format, args...)
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.log(levelWarn, "WARN", color.FgYellow, format, args...)
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.log(levelError, "ERROR", color.FgRed, format, args...)
}
