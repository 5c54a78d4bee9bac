package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-reading-assistant/internal/config"
	"ai-reading-assistant/internal/events"
	"ai-reading-assistant/internal/observability/logging"
	"ai-reading-assistant/internal/service/capture"
	captureg "ai-reading-assistant/internal/service/capture/google"
	capturemock "ai-reading-assistant/internal/service/capture/mock"
	"ai-reading-assistant/internal/service/capture/source"
	"ai-reading-assistant/internal/service/playback"
	playbackg "ai-reading-assistant/internal/service/playback/google"
	playbackmock "ai-reading-assistant/internal/service/playback/mock"
	"ai-reading-assistant/internal/service/summarize"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Publisher  *events.Publisher
	Hub        *events.Hub
	Bridge     *events.Bridge
	Capture    *capture.Manager
	Playback   *playback.Controller
	Summarizer *summarize.Service

	closers []func() error
	cancel  context.CancelFunc
	ready   atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}
	a.Logger.Info().
		Str("captureProvider", cfg.Capture.Provider).
		Str("playbackProvider", cfg.Playback.Provider).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Msg("Reading assistant application created")
	return a
}

// Start builds the engines and starts the notification loops. Background
// work stops when ctx is cancelled or Shutdown is called.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	ctx, a.cancel = context.WithCancel(ctx)

	a.Publisher = events.New(&events.Config{
		Enabled:       a.Cfg.Kafka.Enabled,
		Brokers:       a.Cfg.Kafka.Brokers,
		TopicCapture:  a.Cfg.Kafka.CaptureTopic,
		TopicPlayback: a.Cfg.Kafka.PlaybackTopic,
		TopicSummary:  a.Cfg.Kafka.SummaryTopic,
		Principal:     a.Cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher.Close)

	a.Hub = events.NewHub()
	a.Bridge = events.NewBridge(a.Publisher, a.Hub)
	go a.Hub.Run(ctx)
	go a.Bridge.Run(ctx)

	a.Summarizer = summarize.NewService(a.Bridge)

	captureEngine, gate, err := a.newCaptureEngine(ctx)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("capture engine: %w", err)
	}
	captureOpts := []capture.Option{
		capture.WithObserver(a.Bridge),
		capture.WithRestartDelay(a.Cfg.Capture.RestartDelay),
		capture.WithEngineConfig(capture.EngineConfig{
			Continuous:     true,
			InterimResults: a.Cfg.Capture.InterimResults,
			Language:       a.Cfg.Capture.LanguageCode,
		}),
	}
	if gate != nil {
		captureOpts = append(captureOpts, capture.WithPermissionGate(gate))
	}
	a.Capture = capture.NewManager(captureEngine, captureOpts...)

	playbackEngine, err := a.newPlaybackEngine(ctx)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("playback engine: %w", err)
	}
	a.Playback = playback.NewController(playbackEngine, playback.WithObserver(a.Bridge))

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("captureEngine", captureEngine.Name()).
		Str("playbackEngine", playbackEngine.Name()).
		Msg("Reading assistant starting")

	return nil
}

// Ready reports whether Start completed and Shutdown has not been called.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

func (a *Application) newCaptureEngine(ctx context.Context) (capture.Engine, capture.PermissionGate, error) {
	cfg := a.Cfg.Capture
	switch cfg.Provider {
	case "mock":
		return capturemock.New(capturemock.DefaultConfig()), nil, nil
	case "google":
	default:
		return nil, nil, fmt.Errorf("unknown capture provider %q", cfg.Provider)
	}

	var (
		src  source.Source
		gate capture.PermissionGate
	)
	switch cfg.Source {
	case "microphone":
		mic := source.NewMicrophone(cfg.SampleRateHz)
		a.closers = append(a.closers, func() error {
			mic.Release()
			return nil
		})
		src, gate = mic, source.MicrophoneGate{}
	case "wav":
		wav, err := source.NewWAVFile(cfg.WAVPath, true)
		if err != nil {
			return nil, nil, err
		}
		src, gate = wav, source.AllowAll{}
	default:
		return nil, nil, fmt.Errorf("unknown capture source %q", cfg.Source)
	}

	engine, err := captureg.New(ctx, src, captureg.Config{
		LanguageCode:      cfg.LanguageCode,
		InterimResults:    cfg.InterimResults,
		AudioEncoding:     cfg.AudioEncoding,
		MaxStreamDuration: cfg.MaxStreamDuration,
	})
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, engine.Close)
	return engine, gate, nil
}

func (a *Application) newPlaybackEngine(ctx context.Context) (playback.Engine, error) {
	cfg := a.Cfg.Playback
	switch cfg.Provider {
	case "mock":
		return playbackmock.New(), nil
	case "google":
		engine, err := playbackg.New(ctx, playbackg.Config{
			DefaultVoice: cfg.DefaultVoice,
			SampleRate:   cfg.SampleRateHz,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, engine.Close)
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown playback provider %q", cfg.Provider)
	}
}

// Shutdown stops capture and playback and releases every resource.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	if a.Capture != nil {
		a.Capture.Stop()
	}
	if a.Playback != nil {
		a.Playback.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil

	shutdownLogger.Info().Msg("Reading assistant shutting down")
}
