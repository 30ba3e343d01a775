package main

import (
	"log/slog"
	"os"

	"github.com/openfoodhub/insight-server/cmd/insight-server/cmd"
)

func main() {
	command := cmd.RootCmd
	if err := command.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
