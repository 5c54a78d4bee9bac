package main

import (
	"os"

	"github.com/spf13/cobra"

	"ai-reading-assistant/internal/mcpserver"
	"ai-reading-assistant/internal/observability/logging"
	"ai-reading-assistant/internal/service/summarize"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the summarize tools over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol
		logging.InitWithWriter(logging.Config{
			Level:  cfg.Observability.LogLevel,
			Format: cfg.Observability.LogFormat,
		}, os.Stderr)

		return mcpserver.ServeStdio(mcpserver.New(summarize.NewService(nil)))
	},
}
