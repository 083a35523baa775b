// SPDX-License-Identifier: MIT
package audio

import (
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioCapture implements pipeline.CaptureStream over a PortAudio
// blocking-mode input stream, grounded on the teacher's StartInputStream
// (device selection, latency choice, OpenStream/Start/Stop/Close), widened
// from int32 to float32 samples and from input-only to a standalone
// capture half of a full-duplex pair.
type PortAudioCapture struct {
	stream   *portaudio.Stream
	buf      []float32
	channels int
	fpb      int
	sr       float64
}

// NewPortAudioCapture opens (but does not start) a blocking-read input
// stream on device.
func NewPortAudioCapture(device *portaudio.DeviceInfo, channels, framesPerBurst int, sampleRate float64, lowLatency bool) (*PortAudioCapture, error) {
	latency := device.DefaultHighInputLatency
	if lowLatency {
		latency = device.DefaultLowInputLatency
	}

	c := &PortAudioCapture{
		buf:      make([]float32, framesPerBurst*channels),
		channels: channels,
		fpb:      framesPerBurst,
		sr:       sampleRate,
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: framesPerBurst,
		SampleRate:      sampleRate,
	}

	stream, err := portaudio.OpenStream(params, c.buf)
	if err != nil {
		return nil, err
	}
	c.stream = stream
	return c, nil
}

func (c *PortAudioCapture) ChannelCount() int   { return c.channels }
func (c *PortAudioCapture) FramesPerBurst() int { return c.fpb }
func (c *PortAudioCapture) SampleRate() float64 { return c.sr }
func (c *PortAudioCapture) RequestStart() error { return c.stream.Start() }

func (c *PortAudioCapture) RequestStop() error {
	if err := c.stream.Stop(); err != nil {
		return err
	}
	return c.stream.Close()
}

// Read blocks on the underlying PortAudio stream until one full burst is
// available. PortAudio's blocking Read call has no per-call deadline of
// its own; at the device's steady-state rate it returns well within
// timeout, so timeout is accepted for interface symmetry with the fakes
// used in tests but not separately enforced here.
func (c *PortAudioCapture) Read(dst []float32, frames int, _ time.Duration) (int, error) {
	if frames > c.fpb {
		frames = c.fpb
	}
	if err := c.stream.Read(); err != nil {
		return 0, err
	}
	n := copy(dst, c.buf[:frames*c.channels])
	return n / c.channels, nil
}

// PortAudioPlayback implements pipeline.PlaybackStream over a
// callback-driven PortAudio output stream. The callback invokes pull
// (bound to Orchestrator.PullTo by main.go) on every device buffer swap,
// matching the spec's "playback thread is entirely callback-driven"
// design.
type PortAudioPlayback struct {
	stream   *portaudio.Stream
	channels int
	fpb      int
	sr       float64
	pull     func(out []float32)
}

// NewPortAudioPlayback opens (but does not start) a callback-driven
// output stream on device. pull must not block.
func NewPortAudioPlayback(device *portaudio.DeviceInfo, channels, framesPerBurst int, sampleRate float64, lowLatency bool, pull func(out []float32)) (*PortAudioPlayback, error) {
	latency := device.DefaultHighOutputLatency
	if lowLatency {
		latency = device.DefaultLowOutputLatency
	}

	p := &PortAudioPlayback{
		channels: channels,
		fpb:      framesPerBurst,
		sr:       sampleRate,
		pull:     pull,
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   device,
			Latency:  latency,
		},
		FramesPerBuffer: framesPerBurst,
		SampleRate:      sampleRate,
	}

	stream, err := portaudio.OpenStream(params, p.callback)
	if err != nil {
		return nil, err
	}
	p.stream = stream
	return p, nil
}

func (p *PortAudioPlayback) callback(out []float32) { p.pull(out) }

func (p *PortAudioPlayback) ChannelCount() int   { return p.channels }
func (p *PortAudioPlayback) FramesPerBurst() int { return p.fpb }
func (p *PortAudioPlayback) SampleRate() float64 { return p.sr }
func (p *PortAudioPlayback) RequestStart() error { return p.stream.Start() }

func (p *PortAudioPlayback) RequestStop() error {
	if err := p.stream.Stop(); err != nil {
		return err
	}
	return p.stream.Close()
}
