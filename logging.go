package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"dx7bridge/config"
)

// setupLogging sends the standard logger to a rotated file and, when
// console is set, to stderr as well. Commands that own the terminal or
// stdout pass console=false.
func setupLogging(cfg config.LogConfig, console bool) (io.Closer, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "dx7bridge.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	if console {
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	} else {
		log.SetOutput(rotator)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return rotator, nil
}
