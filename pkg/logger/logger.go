// Package logger provides structured logging for the auction engine
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // time format for console output
}

// DefaultConfig returns sensible defaults for production
func DefaultConfig() Config {
	return Config{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "json"),
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global logger
func Init(cfg Config) {
	var output io.Writer = os.Stdout

	// Parse log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Configure output format
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: cfg.TimeFormat,
		}
	}

	// Create logger with common fields
	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "auctionengine").
		Logger()
}

// Auction returns a logger scoped to a single auction id
func Auction(auctionID string) zerolog.Logger {
	return Log.With().Str("auction_id", auctionID).Logger()
}

// Bidder returns a logger scoped to a bidder principal
func Bidder(principal string) zerolog.Logger {
	return Log.With().Str("principal", principal).Logger()
}

// Engine returns a logger scoped to an auction protocol engine
func Engine(kind string) zerolog.Logger {
	return Log.With().Str("engine", kind).Logger()
}

// Gateway returns a logger for AssetGateway calls
func Gateway() zerolog.Logger {
	return Log.With().Str("component", "gateway").Logger()
}

// getEnv returns environment variable or default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
