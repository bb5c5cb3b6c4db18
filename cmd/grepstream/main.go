package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mariasu11/grepstream/internal/config"
)

// Version is set at build time
var Version = "dev"

// Global logger instance
var logger hclog.Logger

func main() {
	// Initialize the logger; replaced once the configuration is loaded
	logger = hclog.New(&hclog.LoggerOptions{
		Name:       "grepstream",
		Level:      hclog.LevelFromString(os.Getenv("GREPSTREAM_LOG_LEVEL")),
		Output:     os.Stderr,
		JSONFormat: true,
	})

	// Execute the root command
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the logger described by cfg. Logs go to stderr, or to a
// rotated file when one is configured; stdout carries the filtered entries.
func newLogger(cfg config.LogConfig) hclog.Logger {
	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "grepstream",
		Level:      hclog.LevelFromString(cfg.Level),
		Output:     out,
		JSONFormat: strings.EqualFold(cfg.Format, "json"),
	})
}
