package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"arkdrop/internal/config"
)

const logLevelEnvKey = "DROP_LOG_LEVEL"

// logLevelChoice records which layer supplied the level so a bad value can
// be reported against the place the user has to fix.
type logLevelChoice struct {
	raw    string
	origin string
}

func (c logLevelChoice) describe() string {
	switch c.origin {
	case "env":
		return fmt.Sprintf("%s=%q", logLevelEnvKey, c.raw)
	case "config":
		return fmt.Sprintf("log_level=%q", c.raw)
	default:
		return fmt.Sprintf("--log-level %q", c.raw)
	}
}

// configureLoggerForCLI installs the default slog logger. An invalid flag is
// an error; an invalid env or config value falls back to the default level
// and returns a warning for stderr.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}
	if choice.origin == "flag" {
		return "", fmt.Errorf("invalid %s", choice.describe())
	}

	fallback, _ := parseLogLevel("")
	slog.SetDefault(newLogger(fallback))
	return fmt.Sprintf("warning: invalid %s; defaulting to %s", choice.describe(), config.DefaultLogLevel), nil
}

// chooseLogLevel applies flag > env > config precedence.
func chooseLogLevel(flagLevel, envLevel, configLevel string) logLevelChoice {
	for _, c := range []logLevelChoice{
		{raw: flagLevel, origin: "flag"},
		{raw: envLevel, origin: "env"},
		{raw: configLevel, origin: "config"},
	} {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return logLevelChoice{origin: "default"}
}

// parseLogLevel accepts slog names, "warning" and numeric levels. Empty
// means config.DefaultLogLevel.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		value = config.DefaultLogLevel
	case "warning":
		value = "warn"
	}
	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
