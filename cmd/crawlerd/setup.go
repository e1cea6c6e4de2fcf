package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/EngineSearch/crawler/internal/config"
	"github.com/EngineSearch/crawler/internal/logging"
)

// loadConfigAndLogger loads configuration from configFile (CLI flags take
// precedence over file/env values) and initializes structured logging.
func loadConfigAndLogger() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("loading config: %w", err)
	}

	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		LogDir:     cfg.Logging.LogDir,
		MaxSizeMB:  cfg.Logging.Rotation.MaxSize,
		MaxBackups: cfg.Logging.Rotation.MaxBackups,
		MaxAgeDays: cfg.Logging.Rotation.MaxAge,
		Compress:   cfg.Logging.Rotation.Compress,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	} else if verbose {
		logCfg.Level = "debug"
	}

	log, err := logging.Init(logCfg)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("initializing logger: %w", err)
	}
	if verbose {
		log.Info().Msg("verbose mode enabled")
	}

	return cfg, log, nil
}
