package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings stores config for logger
type Settings struct {
	Level string
	// Path is the log directory, empty disables the log file
	Path string
	Name string
	Ext  string
	// Stdout also writes logs to stdout
	Stdout     bool
	TimeFormat string
	// rotation, sizes in megabytes and age in days
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

var (
	mu      sync.Mutex
	logFile *lumberjack.Logger
)

// Setup configures the standard logrus logger.
// Calling it again replaces the previous output.
func Setup(settings *Settings) error {
	level := logrus.InfoLevel
	if settings.Level != "" {
		l, err := logrus.ParseLevel(settings.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}

	var writers []io.Writer
	var file *lumberjack.Logger
	if settings.Path != "" {
		if err := os.MkdirAll(settings.Path, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		ext := settings.Ext
		if ext == "" {
			ext = "log"
		}
		name := settings.Name
		if name == "" {
			name = "minikv"
		}
		file = &lumberjack.Logger{
			Filename:   filepath.Join(settings.Path, name+"."+ext),
			MaxSize:    settings.MaxSize,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAge,
			Compress:   settings.Compress,
		}
		writers = append(writers, file)
	}
	if settings.Stdout || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	timeFormat := settings.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}

	mu.Lock()
	defer mu.Unlock()
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timeFormat,
	})
	logrus.SetOutput(io.MultiWriter(writers...))
	old := logFile
	logFile = file
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close closes the log file, if any. Later entries go to stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	logrus.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
