package common

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// SetupLogger installs a JSON slog logger on stdout as the default. The level
// is Info, or Debug when DEVELOPMENT_MODE is true.
func SetupLogger() *slog.Logger {
	var programLevel = new(slog.LevelVar) // Info by default
	isDev, err := strconv.ParseBool(os.Getenv("DEVELOPMENT_MODE"))
	if err == nil && isDev {
		programLevel.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(logger)
	return logger
}

// Getenv returns the value of key, or fallback when it is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetenvDuration parses key as a time.Duration, falling back on absence or
// parse failure.
func GetenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Ignoring malformed duration", "key", key, "value", v, "error", err)
		return fallback
	}
	return d
}

// GetenvInt64 parses key as a base-10 int64, falling back on absence or
// parse failure.
func GetenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("Ignoring malformed integer", "key", key, "value", v, "error", err)
		return fallback
	}
	return n
}
