package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ai-reading-assistant/internal/app"
)

var (
	listenSummarize bool
	listenSpeak     bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe speech until interrupted, then print the transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application := app.New(cfg)
		if err := application.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		defer application.Shutdown()

		if err := application.Capture.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		last := ""
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
			}
			snap := application.Capture.Snapshot()
			if text := snap.CommittedTranscript + snap.PendingPartial; text != last {
				fmt.Fprintf(out, "\r%s", text)
				last = text
			}
			if !snap.IsActive && !snap.RestartPending && snap.Notice != "" {
				fmt.Fprintf(out, "\n%s\n", snap.Notice)
				break
			}
		}

		application.Capture.Stop()
		transcript := application.Capture.SnapshotTranscript()
		fmt.Fprintf(out, "\n\nTranscript:\n%s\n", transcript)

		if !listenSummarize {
			return nil
		}
		summary := application.Summarizer.Summarize("cli", transcript)
		fmt.Fprintf(out, "\nSummary:\n%s\n", summary)
		if listenSpeak {
			return speakAndWait(cmd.Context(), application.Playback, summary, cfg.Playback.DefaultRate)
		}
		return nil
	},
}

func init() {
	listenCmd.Flags().BoolVar(&listenSummarize, "summarize", false, "summarize the transcript when done")
	listenCmd.Flags().BoolVar(&listenSpeak, "speak", false, "read the summary aloud (implies --summarize)")
	listenCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if listenSpeak {
			listenSummarize = true
		}
	}
}
