package summarize

import (
	"time"

	"ai-reading-assistant/internal/observability/metrics"
)

// Notifier is told about every summary a Service produces.
type Notifier interface {
	Summarized(source string, inputChars int, summary string)
}

// Service wraps Summarize for the transports. source names the caller
// (http, grpc, mcp, watch, cli) in metrics and notifications.
type Service struct {
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewService creates a Service. notifier may be nil.
func NewService(notifier Notifier) *Service {
	return &Service{
		notifier: notifier,
		metrics:  metrics.DefaultMetrics,
	}
}

// Summarize summarizes text and records the call.
func (s *Service) Summarize(source, text string) string {
	start := time.Now()
	summary := Summarize(text)
	s.metrics.RecordSummarize(source, len(text), time.Since(start).Seconds())

	if s.notifier != nil && summary != NothingToSummarize {
		s.notifier.Summarized(source, len([]rune(text)), summary)
	}
	return summary
}
