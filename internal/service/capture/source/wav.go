package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"ai-reading-assistant/internal/observability/logging"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Frames are 100ms of audio, matching what the recognizer expects.
const chunkInterval = 100 * time.Millisecond

var (
	ErrNotWAV = errors.New("not a valid WAV file")
	ErrNotPCM = errors.New("only PCM WAV files are supported")
	// ErrExhausted is returned by Open once the file has been played to the end.
	ErrExhausted = errors.New("audio file already played")
)

// WAVFormat is the format block of a PCM WAV header.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ChunkSize is the number of bytes in one chunkInterval of audio.
func (f WAVFormat) ChunkSize() int {
	bytesPerSecond := int(f.SampleRate) * int(f.Channels) * int(f.BitsPerSample) / 8
	return bytesPerSecond * int(chunkInterval/time.Millisecond) / 1000
}

// ParseWAVHeader validates a canonical 44-byte WAV header.
func ParseWAVHeader(header []byte) (WAVFormat, error) {
	if len(header) < wavHeaderSize {
		return WAVFormat{}, ErrNotWAV
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, ErrNotWAV
	}

	f := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 { // PCM
		return f, ErrNotPCM
	}
	return f, nil
}

// WAVFile replays a PCM WAV file. Open resumes from the start until the file
// has been played through once; after that it returns ErrExhausted, which
// keeps a capture session from restarting on the same audio forever.
type WAVFile struct {
	path     string
	realtime bool
	format   WAVFormat

	mu     sync.Mutex
	played bool
	cancel context.CancelFunc
}

// NewWAVFile opens path once to validate its header. With realtime set,
// frames are paced at chunkInterval.
func NewWAVFile(path string, realtime bool) (*WAVFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	format, err := ParseWAVHeader(header)
	if err != nil {
		return nil, err
	}

	return &WAVFile{path: path, realtime: realtime, format: format}, nil
}

func (w *WAVFile) Name() string { return "wav" }

func (w *WAVFile) SampleRate() int { return int(w.format.SampleRate) }

// Format returns the parsed header.
func (w *WAVFile) Format() WAVFormat { return w.format }

// Open starts streaming the file body.
func (w *WAVFile) Open(ctx context.Context) (<-chan []byte, error) {
	w.mu.Lock()
	played := w.played
	w.mu.Unlock()
	if played {
		return nil, ErrExhausted
	}

	f, err := os.Open(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	if _, err := f.Seek(wavHeaderSize, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	frames := make(chan []byte, 4)
	go w.stream(ctx, f, frames)
	return frames, nil
}

func (w *WAVFile) stream(ctx context.Context, f *os.File, frames chan<- []byte) {
	defer close(frames)
	defer f.Close()

	logger := logging.WithComponent("wav-source")
	size := w.format.ChunkSize()
	if size <= 0 {
		size = 1600
	}

	var ticker *time.Ticker
	if w.realtime {
		ticker = time.NewTicker(chunkInterval)
		defer ticker.Stop()
	}

	var total int64
	for {
		chunk := make([]byte, size)
		n, err := io.ReadFull(f, chunk)
		if n > 0 {
			total += int64(n)
			select {
			case frames <- chunk[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				logger.Warn().Err(err).Msg("Failed to read audio")
			}
			logger.Debug().Int64("bytes", total).Msg("Finished streaming file")
			w.mu.Lock()
			w.played = true
			w.mu.Unlock()
			return
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops an in-progress Open.
func (w *WAVFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return nil
}
