package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// VerboseLevel represents the verbosity level for logging
type VerboseLevel int

const (
	// VerboseSilent means no verbose output
	VerboseSilent VerboseLevel = 0
	// VerboseNormal means standard verbose output (-v)
	VerboseNormal VerboseLevel = 1
	// VerboseVery means detailed debugging output (-vv)
	VerboseVery VerboseLevel = 2
)

// Logger handles leveled output on top of a zap core. Messages keep the
// "[*]", "[VV]", "[+]" and "[!]" prefixes; structured fields follow the message.
type Logger struct {
	level VerboseLevel
	zl    *zap.Logger
}

// NewLogger creates a new logger with the specified verbosity level, writing to stderr.
// stdout is never used: in CGI mode it carries the HTTP response.
func NewLogger(level int) *Logger {
	return NewLoggerTo(level, os.Stderr)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(level int, w io.Writer) *Logger {
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	)
	return &Logger{level: VerboseLevel(level), zl: zap.New(core)}
}

// NewNop returns a logger that discards everything, used for silent mode and tests.
func NewNop() *Logger {
	return &Logger{level: VerboseSilent, zl: zap.NewNop()}
}

// Zap exposes the underlying zap logger for structured request logging.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{level: l.level, zl: l.zl.With(fields...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// IsVerbose returns true if verbose mode is enabled (-v or -vv)
func (l *Logger) IsVerbose() bool {
	return l.level >= VerboseNormal
}

// IsVeryVerbose returns true if very verbose mode is enabled (-vv)
func (l *Logger) IsVeryVerbose() bool {
	return l.level >= VerboseVery
}

// V logs a message at verbose level (-v)
func (l *Logger) V(format string, args ...interface{}) {
	if l.IsVerbose() {
		l.zl.Info("[*] " + fmt.Sprintf(format, args...))
	}
}

// VV logs a message at very verbose level (-vv)
func (l *Logger) VV(format string, args ...interface{}) {
	if l.IsVeryVerbose() {
		l.zl.Debug("[VV] " + fmt.Sprintf(format, args...))
	}
}

// Info logs an informational message (always shown unless silent)
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info("[+] " + fmt.Sprintf(format, args...))
}

// Error logs an error message (always shown unless silent)
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error("[!] " + fmt.Sprintf(format, args...))
}

// Section logs a section header for very verbose mode
func (l *Logger) Section(title string) {
	if l.IsVeryVerbose() {
		l.zl.Debug(fmt.Sprintf("\n[VV] === %s ===", title))
	}
}

// Detail logs a detail line for very verbose mode with indentation
func (l *Logger) Detail(format string, args ...interface{}) {
	if l.IsVeryVerbose() {
		l.zl.Debug("[VV] -> " + fmt.Sprintf(format, args...))
	}
}
