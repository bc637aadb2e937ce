package main

import (
	"log/slog"
	"os"

	"github.com/dwizi/trapper/internal/cli"
	"github.com/dwizi/trapper/internal/config"
)

func main() {
	dotEnvErr := config.LoadDotEnv()
	// Logs go to stderr so command output such as snapshot --json stays parseable.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: config.FromEnv().SlogLevel()}))
	if dotEnvErr != nil {
		logger.Warn("ignoring .env file", "error", dotEnvErr)
	}
	if err := cli.NewRoot(logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
