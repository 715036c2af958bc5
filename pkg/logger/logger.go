package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// LogFile receives a timestamped copy of every entry. Empty disables it.
	LogFile string
	Verbose bool
	Silent  bool
	Output  io.Writer
}

type customFormatter struct{}

func levelText(level logrus.Level) string {
	switch level {
	case logrus.InfoLevel:
		return "[INF]"
	case logrus.WarnLevel:
		return "[WRN]"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "[ERR]"
	case logrus.DebugLevel, logrus.TraceLevel:
		return "[DBG]"
	default:
		return "[???]"
	}
}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s %s\n", levelText(entry.Level), entry.Message)), nil
}

type fileFormatter struct{}

func (f *fileFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s %s %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), levelText(entry.Level), entry.Message)), nil
}

// fileHook appends every entry to the run log regardless of the console
// level set by -silent.
type fileHook struct {
	mu        sync.Mutex
	w         io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(line)
	return err
}

// New returns a logger writing bracketed lines to stderr and, when
// configured, to an append-only run log. The returned func closes the log.
func New(opts Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetFormatter(&customFormatter{})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	switch {
	case opts.Verbose:
		logger.SetLevel(logrus.DebugLevel)
	case opts.Silent:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	closer := func() error { return nil }

	if opts.LogFile == "" {
		return logger, closer, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0755); err != nil {
		return logger, closer, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return logger, closer, fmt.Errorf("failed to open log file: %w", err)
	}

	levels := []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
	if opts.Verbose {
		levels = append(levels, logrus.DebugLevel)
	}

	// hooks only fire for entries that pass the logger level, so keep the
	// logger at info and let the console writer drop what -silent hides
	if opts.Silent && !opts.Verbose {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetOutput(&levelGate{w: out})
	}

	logger.AddHook(&fileHook{w: f, formatter: &fileFormatter{}, levels: levels})

	return logger, f.Close, nil
}

// levelGate passes only error lines to the console.
type levelGate struct {
	w io.Writer
}

func (g *levelGate) Write(p []byte) (int, error) {
	if len(p) >= 5 && string(p[:5]) == "[ERR]" {
		return g.w.Write(p)
	}
	return len(p), nil
}
