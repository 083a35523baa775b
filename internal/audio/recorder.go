// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync/atomic"

	waveaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder is a debug WAV tap on the raw 48kHz stereo capture stream,
// adapted from the teacher's StartRecording/StopRecording/Close, widened
// from int32-only capture recording to any caller-supplied float32
// buffer (so it can sit directly on Orchestrator's capture path without
// duplicating format-conversion logic per caller).
type Recorder struct {
	channels   int
	sampleRate int
	bitDepth   int

	recording atomic.Bool
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *waveaudio.IntBuffer
}

// NewRecorder constructs a Recorder for the given channel count, sample
// rate and bit depth. It does not open a file until Start is called.
func NewRecorder(channels, sampleRate, bitDepth int) *Recorder {
	return &Recorder{channels: channels, sampleRate: sampleRate, bitDepth: bitDepth}
}

// Start opens filename and begins accepting Write calls.
func (r *Recorder) Start(filename string) error {
	if r.recording.Load() {
		return fmt.Errorf("recorder: already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	r.file = file
	r.encoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, r.channels, 1)
	r.sampleBuf = &waveaudio.IntBuffer{
		Format: &waveaudio.Format{NumChannels: r.channels, SampleRate: r.sampleRate},
		Data:   make([]int, 0),
	}

	r.recording.Store(true)
	return nil
}

// scale maps a [-1, 1] float32 sample to the encoder's integer bit depth.
func (r *Recorder) scale(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	max := int32(1)<<(r.bitDepth-1) - 1
	return int(v * float32(max))
}

// Write encodes one interleaved buffer of captured audio if recording is
// active; it is a no-op otherwise, so callers can invoke it unconditionally
// from the capture hot path.
func (r *Recorder) Write(interleaved []float32) error {
	if !r.recording.Load() || r.encoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(interleaved) {
		r.sampleBuf.Data = make([]int, len(interleaved))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(interleaved)]
	for i, v := range interleaved {
		r.sampleBuf.Data[i] = r.scale(v)
	}

	return r.encoder.Write(r.sampleBuf)
}

// Stop finalizes the WAV file. It is safe to call when not recording.
func (r *Recorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}
	r.recording.Store(false)

	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			return err
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return err
		}
		r.file = nil
	}
	return nil
}
