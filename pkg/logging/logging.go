package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var logFile *os.File

/*
Config selects the level, formatter and optional file sink of the default
charmbracelet logger every package in this module writes to.
*/
type Config struct {
	Level  string
	Format string
	File   string
	Caller bool
}

/*
Setup configures the default logger. When File is set, output is appended
to it instead of stderr.
*/
func Setup(cfg Config) error {
	var out io.Writer = os.Stderr

	if cfg.File != "" {
		fh, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}

		Close()
		logFile = fh
		out = fh
	}

	level := log.InfoLevel

	if cfg.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}

		level = parsed
	}

	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(formatter(cfg.Format))
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.TimeOnly)
	log.SetReportCaller(cfg.Caller)

	log.Debug("logging initialized", "level", level.String(), "file", cfg.File)
	return nil
}

func formatter(name string) log.Formatter {
	switch strings.ToLower(name) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

/*
Close releases the file sink, if any.
*/
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
