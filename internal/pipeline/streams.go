// SPDX-License-Identifier: MIT
package pipeline

import "time"

// CaptureStream is the blocking-read device collaborator the Orchestrator
// reads 48 kHz stereo frames from. internal/audio provides a PortAudio-
// backed implementation; tests use an in-memory fake.
type CaptureStream interface {
	ChannelCount() int
	FramesPerBurst() int
	SampleRate() float64
	RequestStart() error
	RequestStop() error
	// Read blocks for up to timeout waiting for frames, writing interleaved
	// samples into dst (which holds frames*ChannelCount() float32s) and
	// returning the number of frames actually read.
	Read(dst []float32, frames int, timeout time.Duration) (int, error)
}

// PlaybackStream is the callback-driven device collaborator the
// Orchestrator learns its operating parameters from at Start. The actual
// pull of audio happens through Orchestrator.PullTo, invoked from the
// device's own callback — PlaybackStream itself exposes no Write method.
type PlaybackStream interface {
	ChannelCount() int
	FramesPerBurst() int
	SampleRate() float64
	RequestStart() error
	RequestStop() error
}
