package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir is the path to the data directory
	DataDir string `help:"Path to data directory" default:"./data"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
}

// SetupLogger creates a logger honoring the configured level
func (c CommonConfig) SetupLogger() (*log.Logger, error) {
	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}

// LoadEnv loads a .env file from the working directory when present, so
// API keys can live outside the shell environment. A missing file is
// not an error.
func LoadEnv() {
	_ = godotenv.Load()
}
