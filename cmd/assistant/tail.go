package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ai-reading-assistant/internal/events"
)

var tailSince time.Duration

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print capture, playback and summary notifications from Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var mu sync.Mutex
		enc := json.NewEncoder(cmd.OutOrStdout())
		emit := func(env events.Envelope) {
			mu.Lock()
			defer mu.Unlock()
			_ = enc.Encode(env)
		}

		g, ctx := errgroup.WithContext(ctx)
		for _, topic := range []string{cfg.Kafka.CaptureTopic, cfg.Kafka.PlaybackTopic, cfg.Kafka.SummaryTopic} {
			g.Go(func() error {
				return events.Consume(ctx, events.ConsumerConfig{
					Brokers: cfg.Kafka.Brokers,
					Topic:   topic,
					Since:   tailSince,
				}, emit)
			})
		}
		return g.Wait()
	},
}

func init() {
	tailCmd.Flags().DurationVar(&tailSince, "since", time.Hour, "replay notifications newer than this")
}
