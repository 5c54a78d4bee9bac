// Package config loads service configuration from environment variables.
// Every value has a default; values that fail to parse fall back to it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Capture       CaptureConfig
	Playback      PlaybackConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
	Watch         WatchConfig
}

// ServiceConfig holds identity and listener settings.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
}

// CaptureConfig selects and tunes the capture engine.
type CaptureConfig struct {
	Provider          string // mock, google
	Source            string // microphone, wav
	WAVPath           string
	LanguageCode      string
	SampleRateHz      int
	InterimResults    bool
	AudioEncoding     string
	RestartDelay      time.Duration
	MaxStreamDuration time.Duration
}

// PlaybackConfig selects and tunes the playback engine.
type PlaybackConfig struct {
	Provider     string // mock, google
	DefaultVoice string
	DefaultRate  float64
	SampleRateHz int
}

// KafkaConfig holds notification publishing settings.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	Principal     string
	CaptureTopic  string
	PlaybackTopic string
	SummaryTopic  string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// WatchConfig holds folder watcher settings.
type WatchConfig struct {
	Dir         string
	OutputDir   string
	Concurrency int
}

// Load reads the configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-reading-assistant")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Capture: CaptureConfig{
			Provider:          envOrDefault("CAPTURE_PROVIDER", "mock"),
			Source:            envOrDefault("CAPTURE_SOURCE", "microphone"),
			WAVPath:           envOrDefault("CAPTURE_WAV_PATH", ""),
			LanguageCode:      envOrDefault("CAPTURE_LANGUAGE_CODE", "en-US"),
			SampleRateHz:      envOrDefaultInt("CAPTURE_SAMPLE_RATE_HZ", 16000),
			InterimResults:    envOrDefaultBool("CAPTURE_INTERIM_RESULTS", true),
			AudioEncoding:     envOrDefault("CAPTURE_AUDIO_ENCODING", "LINEAR16"),
			RestartDelay:      envOrDefaultDuration("CAPTURE_RESTART_DELAY", 100*time.Millisecond),
			MaxStreamDuration: envOrDefaultDuration("CAPTURE_MAX_STREAM_DURATION", 290*time.Second),
		},
		Playback: PlaybackConfig{
			Provider:     envOrDefault("PLAYBACK_PROVIDER", "mock"),
			DefaultVoice: envOrDefault("PLAYBACK_DEFAULT_VOICE", "en-US-Standard-C"),
			DefaultRate:  envOrDefaultFloat("PLAYBACK_DEFAULT_RATE", 1.0),
			SampleRateHz: envOrDefaultInt("PLAYBACK_SAMPLE_RATE_HZ", 24000),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
			CaptureTopic:  envOrDefault("KAFKA_TOPIC_CAPTURE", "reading.capture.v1"),
			PlaybackTopic: envOrDefault("KAFKA_TOPIC_PLAYBACK", "reading.playback.v1"),
			SummaryTopic:  envOrDefault("KAFKA_TOPIC_SUMMARY", "reading.summary.v1"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Watch: WatchConfig{
			Dir:         envOrDefault("WATCH_DIR", ""),
			OutputDir:   envOrDefault("WATCH_OUTPUT_DIR", ""),
			Concurrency: envOrDefaultInt("WATCH_CONCURRENCY", 2),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
