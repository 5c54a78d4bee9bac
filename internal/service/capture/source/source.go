// Package source provides raw PCM audio for capture engines: the local
// microphone through malgo, or a WAV file replayed in real time.
package source

import "context"

// Source produces 16-bit little-endian mono PCM frames.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// SampleRate is the rate of the frames in Hz.
	SampleRate() int

	// Open starts producing frames. The channel is closed when the source is
	// exhausted, ctx is done, or Close is called.
	Open(ctx context.Context) (<-chan []byte, error)

	// Close stops the source and releases the device or file.
	Close() error
}
