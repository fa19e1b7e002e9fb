package main

import (
	"context"
	"os"

	"github.com/desertthunder/scout/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadDotenv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	config.ApplyEnv()

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "scout",
		Usage:    "Discover emerging music artists from YouTube",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx := context.Background()
	err := app.Run(ctx, os.Args)

	if closeErr := runner.Close(ctx); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		if shared.ErrorKind(err) == "InvalidRequest" {
			logger.Errorf("invalid request: %v", err)
			os.Exit(1)
		}
		logger.Errorf("application error: %v", err)
		os.Exit(2)
	}
}
