// Package google provides a playback engine backed by Google Cloud
// Text-to-Speech, played on the local speaker through beep.
package google

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"

	"ai-reading-assistant/internal/observability/logging"
	"ai-reading-assistant/internal/service/playback"
)

// Error codes reported to the listener.
const (
	CodeSynthesisFailed = "synthesis-failed"
	CodeAudioFailed     = "audio-failed"
)

// Config holds Google Text-to-Speech settings.
type Config struct {
	DefaultVoice string
	SampleRate   int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultVoice: "en-US-Standard-C",
		SampleRate:   24000,
	}
}

type playing struct {
	ctrl     *beep.Ctrl
	listener playback.Listener
	cancel   context.CancelFunc
}

// Engine implements playback.Engine using Google Cloud Text-to-Speech.
type Engine struct {
	client *texttospeech.Client
	cfg    Config
	logger zerolog.Logger

	speakerOnce sync.Once
	speakerErr  error

	mu     sync.Mutex
	active map[string]*playing
}

// New creates a new Google playback engine.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{
		client: client,
		cfg:    cfg,
		logger: logging.WithComponent("google-playback"),
		active: make(map[string]*playing),
	}, nil
}

func (e *Engine) Name() string { return "google" }

// Speak synthesizes u and plays it. Synthesis runs in the background; the
// listener hears about the outcome.
func (e *Engine) Speak(ctx context.Context, u playback.Utterance, l playback.Listener) error {
	if err := e.initSpeaker(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &playing{listener: l, cancel: cancel}

	e.mu.Lock()
	e.active[u.Id] = p
	e.mu.Unlock()

	go e.play(ctx, u, p)
	return nil
}

func (e *Engine) play(ctx context.Context, u playback.Utterance, p *playing) {
	resp, err := e.client.SynthesizeSpeech(ctx, synthesizeRequest(e.cfg, u))
	if err != nil {
		if ctx.Err() != nil {
			return // cancelled, already reported
		}
		e.logger.Error().Err(err).Str("requestId", u.Id).Msg("Synthesis failed")
		e.finish(u.Id, CodeSynthesisFailed)
		return
	}

	// Decode audio in memory
	stream, _, err := wav.Decode(bytes.NewReader(resp.AudioContent))
	if err != nil {
		e.logger.Error().Err(err).Str("requestId", u.Id).Msg("Failed to decode audio")
		e.finish(u.Id, CodeAudioFailed)
		return
	}

	ctrl := &beep.Ctrl{Streamer: beep.Seq(stream, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held.
		go e.finish(u.Id, "")
	}))}

	e.mu.Lock()
	if _, ok := e.active[u.Id]; !ok {
		e.mu.Unlock()
		stream.Close()
		return
	}
	p.ctrl = ctrl
	e.mu.Unlock()

	p.listener.OnStart(u.Id)
	speaker.Play(ctrl)
}

// finish reports the end of id. code is empty for a normal end.
func (e *Engine) finish(id, code string) {
	e.mu.Lock()
	p, ok := e.active[id]
	delete(e.active, id)
	e.mu.Unlock()
	if !ok {
		return
	}

	p.cancel()
	if code == "" {
		p.listener.OnEnd(id)
		return
	}
	p.listener.OnError(id, code)
}

// Cancel silences everything that is playing or still being synthesized.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	active := e.active
	e.active = make(map[string]*playing)
	e.mu.Unlock()

	for id, p := range active {
		p.cancel()
		if p.ctrl != nil {
			speaker.Lock()
			p.ctrl.Streamer = nil
			p.ctrl.Paused = true
			speaker.Unlock()
		}
		p.listener.OnError(id, playback.CodeInterrupted)
	}
	return nil
}

// Voices lists the provider's voices.
func (e *Engine) Voices(ctx context.Context) ([]playback.Voice, error) {
	resp, err := e.client.ListVoices(ctx, &ttspb.ListVoicesRequest{})
	if err != nil {
		return nil, err
	}
	voices := make([]playback.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		voices = append(voices, playback.Voice{Name: v.Name, Language: lang})
	}
	return voices, nil
}

// Close releases the client.
func (e *Engine) Close() error {
	e.Cancel()
	return e.client.Close()
}

func (e *Engine) initSpeaker() error {
	e.speakerOnce.Do(func() {
		sr := beep.SampleRate(e.cfg.SampleRate)
		if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
			e.speakerErr = fmt.Errorf("failed to initialize speaker: %w", err)
		}
	})
	return e.speakerErr
}

func synthesizeRequest(cfg Config, u playback.Utterance) *ttspb.SynthesizeSpeechRequest {
	voice := u.Voice
	if voice == "" {
		voice = cfg.DefaultVoice
	}
	return &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: u.Text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: languageCode(voice),
			Name:         voice,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_LINEAR16, // WAV PCM
			SampleRateHertz: int32(cfg.SampleRate),
			SpeakingRate:    u.Rate,
			Pitch:           semitones(u.Pitch),
			VolumeGainDb:    gainDb(u.Volume),
		},
	}
}

// languageCode extracts "en-US" from a voice name like "en-US-Standard-C".
func languageCode(voice string) string {
	t := strings.Split(voice, "-")
	if len(t) < 3 {
		return voice
	}
	return fmt.Sprintf("%s-%s", t[0], t[1])
}

// semitones converts a pitch multiplier to the provider's semitone offset.
func semitones(pitch float64) float64 {
	if pitch <= 0 {
		return 0
	}
	return 12 * math.Log2(pitch)
}

// gainDb converts a linear volume to decibels, clamped to the provider range.
func gainDb(volume float64) float64 {
	if volume <= 0 {
		return -96
	}
	return math.Max(-96, math.Min(16, 20*math.Log10(volume)))
}
