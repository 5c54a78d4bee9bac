package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ai-reading-assistant/internal/app"
	"ai-reading-assistant/internal/service/playback"
	"ai-reading-assistant/internal/service/summarize"
)

var (
	speakSummary bool
	speakRate    float64
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a file, or stdin when no file is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if !speakSummary {
			fmt.Fprintln(cmd.OutOrStdout(), summarize.NewService(nil).Summarize("cli", string(data)))
			return nil
		}

		application := app.New(cfg)
		if err := application.Start(cmd.Context()); err != nil {
			return err
		}
		defer application.Shutdown()

		summary := application.Summarizer.Summarize("cli", string(data))
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return speakAndWait(cmd.Context(), application.Playback, summary, speakRate)
	},
}

func init() {
	summarizeCmd.Flags().BoolVar(&speakSummary, "speak", false, "read the summary aloud")
	summarizeCmd.Flags().Float64Var(&speakRate, "rate", 1.0, "speaking rate (0.25-4)")
}

// speakAndWait reads text aloud and blocks until playback ends or ctx is done.
func speakAndWait(ctx context.Context, ctl *playback.Controller, text string, rate float64) error {
	if err := ctl.Speak(ctx, playback.Request{Text: text, Rate: rate}); err != nil {
		return err
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		// Pending until the engine starts, so poll the request rather than IsSpeaking.
		if _, ok := ctl.Current(); !ok {
			return nil
		}
		select {
		case <-ctx.Done():
			ctl.Stop()
			return nil
		case <-ticker.C:
		}
	}
}
