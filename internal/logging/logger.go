// Package logging initializes the process-wide structured logger: a
// colorized console writer plus size/age-rotated log files.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger initialized by Init.
type Config struct {
	Level      string // trace, debug, info, warn, error
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig mirrors the crawler's documented defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		LogDir:     "logs",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// Init builds a zerolog.Logger writing to stdout (colorized) and to two
// rotated files: one with everything, one filtered to warn-and-above.
func Init(cfg Config) (zerolog.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return zerolog.Logger{}, err
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	mainLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "crawler.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	errorLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "crawler_error.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	writer := zerolog.MultiLevelWriter(console, mainLog, &levelFilteredWriter{w: errorLog, min: zerolog.WarnLevel})

	logger := zerolog.New(writer).With().Timestamp().Logger()
	logger.Info().Str("level", cfg.Level).Str("log_dir", cfg.LogDir).Msg("logger initialized")
	return logger, nil
}

// levelFilteredWriter only forwards entries at or above a minimum level.
// zerolog calls WriteLevel (not Write) on writers that implement
// zerolog.LevelWriter, so Write is a best-effort fallback for other paths.
type levelFilteredWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (f *levelFilteredWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (f *levelFilteredWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}
