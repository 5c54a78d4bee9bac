// Package google provides a capture engine backed by Google Cloud
// Speech-to-Text streaming recognition.
package google

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-reading-assistant/internal/observability/logging"
	"ai-reading-assistant/internal/service/capture"
	"ai-reading-assistant/internal/service/capture/source"
)

// ErrAlreadyRunning is returned by Start while a stream is open.
var ErrAlreadyRunning = errors.New("recognition already started")

// Config holds Google Speech-to-Text settings.
type Config struct {
	LanguageCode   string
	InterimResults bool
	AudioEncoding  string
	// MaxStreamDuration ends a stream cleanly before the provider cuts it
	// off. The capture manager restarts it.
	MaxStreamDuration time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:      "en-US",
		InterimResults:    true,
		AudioEncoding:     "LINEAR16",
		MaxStreamDuration: 290 * time.Second,
	}
}

// Engine implements capture.Engine using Google Cloud Speech-to-Text.
type Engine struct {
	client *speech.Client
	src    source.Source
	cfg    Config
	single bool
	logger zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
}

// New creates a new Google capture engine reading audio from src.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, src source.Source, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{
		client: c,
		src:    src,
		cfg:    cfg,
		logger: logging.WithComponent("google-capture"),
	}, nil
}

func (e *Engine) Name() string { return "google" }

// Configure applies the session settings to the recognition config.
func (e *Engine) Configure(cfg capture.EngineConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cfg.Language != "" {
		e.cfg.LanguageCode = cfg.Language
	}
	e.cfg.InterimResults = cfg.InterimResults
	e.single = !cfg.Continuous
	return nil
}

// Start opens a streaming recognition session and begins sending audio.
func (e *Engine) Start(ctx context.Context, sink capture.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	var (
		streamCtx context.Context
		cancel    context.CancelFunc
	)
	if e.cfg.MaxStreamDuration > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, e.cfg.MaxStreamDuration)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}

	stream, err := e.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	// Send streaming config as the first message
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(e.cfg, e.src.SampleRate(), e.single),
		},
	}); err != nil {
		cancel()
		return err
	}

	frames, err := e.src.Open(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	e.running = true
	e.stopping = false
	e.cancel = cancel

	go e.pump(streamCtx, stream, frames)
	go e.listen(streamCtx, ctx, stream, sink)
	return nil
}

// Stop cancels the stream. The listener reports "aborted" and then ends.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.stopping = true
	e.cancel()
	return e.src.Close()
}

// Close releases the client.
func (e *Engine) Close() error {
	e.Stop()
	return e.client.Close()
}

// pump forwards audio frames to the stream until the source runs dry.
func (e *Engine) pump(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, frames <-chan []byte) {
	defer stream.CloseSend()
	for {
		select {
		case <-ctx.Done():
			return
		case audio, ok := <-frames:
			if !ok {
				return
			}
			if err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: audio,
				},
			}); err != nil {
				e.logger.Debug().Err(err).Msg("Audio send stopped")
				return
			}
		}
	}
}

// listen receives transcript responses from Google and converts them into
// capture events. It always finishes with exactly one Ended.
func (e *Engine) listen(streamCtx, parent context.Context, stream speechpb.Speech_StreamingRecognizeClient, sink capture.Sink) {
	sink.OnEvent(capture.Started())

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			e.mu.Lock()
			stopping := e.stopping
			e.mu.Unlock()

			expired := errors.Is(streamCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil
			if code := faultCode(err, stopping, expired); code != "" {
				sink.OnEvent(capture.FaultEvent(code))
			}
			break
		}
		if resp.Error != nil {
			sink.OnEvent(capture.FaultEvent(faultCode(status.ErrorProto(resp.Error), false, false)))
			break
		}
		for _, ev := range eventsFromResults(resp.Results) {
			sink.OnEvent(ev)
		}
	}

	e.src.Close()
	e.mu.Lock()
	e.running = false
	e.stopping = false
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	sink.OnEvent(capture.Ended())
}

// eventsFromResults turns one response batch into capture events: one Final
// per final result, then a single Partial with the batch's interim text.
func eventsFromResults(results []*speechpb.StreamingRecognitionResult) []capture.Event {
	var events []capture.Event
	var interim strings.Builder
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if r.IsFinal {
			events = append(events, capture.Final(alt.Transcript))
		} else {
			interim.WriteString(alt.Transcript)
		}
	}
	if interim.Len() > 0 {
		events = append(events, capture.Partial(interim.String()))
	}
	return events
}

// faultCode maps a stream error to an engine error code. An empty code means
// the stream ended without a fault.
func faultCode(err error, stopping, expired bool) string {
	if stopping {
		return capture.CodeAborted
	}
	if expired {
		return ""
	}

	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return capture.CodeNotAllowed
	case codes.Canceled:
		return capture.CodeAborted
	case codes.Unavailable, codes.DeadlineExceeded:
		return capture.CodeNetwork
	case codes.OutOfRange:
		// Stream duration limit reached.
		return ""
	default:
		return strings.ToLower(status.Code(err).String())
	}
}

func streamingConfig(cfg Config, sampleRate int, single bool) *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
			SampleRateHertz:            int32(sampleRate),
			LanguageCode:               cfg.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		InterimResults:  cfg.InterimResults,
		SingleUtterance: single,
	}
}

// parseAudioEncoding converts a string encoding name to the Speech API enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
