package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"ai-reading-assistant/internal/observability/logging"
)

// ErrNoCaptureDevice is returned when the system has no microphone.
var ErrNoCaptureDevice = errors.New("no audio capture device")

// frameBuffer is how many device callbacks may queue before frames are dropped.
const frameBuffer = 64

// Microphone captures from the default input device.
type Microphone struct {
	sampleRate int

	mu     sync.Mutex
	mctx   *malgo.AllocatedContext
	device *malgo.Device
	frames chan []byte
	closed bool
}

// NewMicrophone returns a Microphone capturing at sampleRate.
func NewMicrophone(sampleRate int) *Microphone {
	return &Microphone{sampleRate: sampleRate}
}

func (m *Microphone) Name() string { return "microphone" }

func (m *Microphone) SampleRate() int { return m.sampleRate }

// Open starts the capture device.
func (m *Microphone) Open(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil, errors.New("microphone already open")
	}

	if m.mctx == nil {
		mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.mctx = mctx
	}

	// Configure audio device
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRate)

	frames := make(chan []byte, frameBuffer)
	logger := logging.WithComponent("microphone")

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(outputSample, inputSample []byte, frameCount uint32) {
			buf := make([]byte, len(inputSample))
			copy(buf, inputSample)

			m.mu.Lock()
			defer m.mu.Unlock()
			if m.closed || m.frames != frames {
				return
			}
			select {
			case frames <- buf:
			default:
				logger.Warn().Msg("Dropping audio frame, consumer too slow")
			}
		},
	}

	device, err := malgo.InitDevice(m.mctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start audio device: %w", err)
	}

	m.device = device
	m.frames = frames
	m.closed = false

	go func() {
		<-ctx.Done()
		m.stopDevice(frames)
	}()

	return frames, nil
}

// stopDevice stops the device that produces frames, if it is still current.
func (m *Microphone) stopDevice(frames chan []byte) {
	m.mu.Lock()
	if m.frames != frames || m.closed {
		m.mu.Unlock()
		return
	}
	device := m.device
	m.device = nil
	m.closed = true
	close(frames)
	m.mu.Unlock()

	if device != nil {
		device.Stop()
		device.Uninit()
	}
}

// Close stops capture. The malgo context stays allocated for the next Open.
func (m *Microphone) Close() error {
	m.mu.Lock()
	frames := m.frames
	m.mu.Unlock()

	if frames != nil {
		m.stopDevice(frames)
	}
	return nil
}

// Release frees the malgo context.
func (m *Microphone) Release() {
	m.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mctx != nil {
		m.mctx.Uninit()
		m.mctx.Free()
		m.mctx = nil
	}
}

// MicrophoneGate grants access when the platform exposes at least one
// capture device that malgo can open.
type MicrophoneGate struct{}

// Request implements capture.PermissionGate.
func (MicrophoneGate) Request(ctx context.Context) (bool, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return false, err
	}
	if len(devices) == 0 {
		return false, ErrNoCaptureDevice
	}
	return true, nil
}

// AllowAll is a PermissionGate for non-interactive sources such as WAV files.
type AllowAll struct{}

// Request implements capture.PermissionGate.
func (AllowAll) Request(ctx context.Context) (bool, error) {
	return true, nil
}
