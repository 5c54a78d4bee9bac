package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai-reading-assistant/internal/config"
	"ai-reading-assistant/internal/observability/logging"
)

var (
	cfg       *config.Configuration
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Reading assistant: capture speech, summarize text, read it aloud",
	Long: "A reading assistant that transcribes speech into a running transcript, " +
		"condenses text into extractive summaries and reads text aloud.",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or console (default from LOG_FORMAT)")
}

func initConfig() {
	cfg = config.Load()
	if logFormat != "" {
		cfg.Observability.LogFormat = logFormat
	}
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(tailCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}
