// SPDX-License-Identifier: MIT
package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fdaudio/internal/ring"
	"fdaudio/pkg/sigtest"
)

// fakeCapture hands out pre-loaded stereo samples immediately (no real
// blocking), then returns zero frames once exhausted, matching the
// "transient capture failure: skip the iteration" contract.
type fakeCapture struct {
	mu       sync.Mutex
	data     []float32 // interleaved stereo
	offset   int
	channels int
	fpb      int
	sr       float64
	started  bool
	stopped  bool
}

func (f *fakeCapture) ChannelCount() int   { return f.channels }
func (f *fakeCapture) FramesPerBurst() int { return f.fpb }
func (f *fakeCapture) SampleRate() float64 { return f.sr }
func (f *fakeCapture) RequestStart() error { f.started = true; return nil }
func (f *fakeCapture) RequestStop() error  { f.stopped = true; return nil }

func (f *fakeCapture) Read(dst []float32, frames int, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	remainingFrames := (len(f.data) - f.offset) / f.channels
	if remainingFrames <= 0 {
		return 0, nil
	}
	n := frames
	if n > remainingFrames {
		n = remainingFrames
	}
	copy(dst[:n*f.channels], f.data[f.offset:f.offset+n*f.channels])
	f.offset += n * f.channels
	return n, nil
}

type failingCapture struct{ fakeCapture }

func (f *failingCapture) RequestStart() error { return errors.New("device busy") }

type fakePlayback struct {
	channels int
	fpb      int
	sr       float64
	started  bool
	stopped  bool
	failStart bool
}

func (f *fakePlayback) ChannelCount() int   { return f.channels }
func (f *fakePlayback) FramesPerBurst() int { return f.fpb }
func (f *fakePlayback) SampleRate() float64 { return f.sr }
func (f *fakePlayback) RequestStart() error {
	if f.failStart {
		return errors.New("playback device busy")
	}
	f.started = true
	return nil
}
func (f *fakePlayback) RequestStop() error { f.stopped = true; return nil }

func newFakeStreams(data []float32) (*fakeCapture, *fakePlayback) {
	return &fakeCapture{data: data, channels: 2, fpb: 288, sr: 48000},
		&fakePlayback{channels: 2, fpb: 288, sr: 48000}
}

// waitUntilDrained polls until the orchestrator's input ring has consumed
// all available input or the timeout elapses.
func waitUntilDrained(t *testing.T, o *Orchestrator, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if o.inCons.AvailableToRead() == 0 {
			time.Sleep(2 * time.Millisecond) // let any in-flight hop finish
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("pipeline did not drain input within timeout")
}

func TestStartRejectsNilStreams(t *testing.T) {
	o := New(nil)
	if o.Start(nil, nil) {
		t.Fatal("Start() with nil streams should fail")
	}
}

func TestStartRollsBackOnPlaybackFailure(t *testing.T) {
	capture, _ := newFakeStreams(make([]float32, 2*2))
	playback := &fakePlayback{channels: 2, fpb: 288, sr: 48000, failStart: true}

	o := New(nil)
	if o.Start(capture, playback) {
		t.Fatal("Start() should fail when playback RequestStart fails")
	}
	if !capture.stopped {
		t.Error("capture stream was not rolled back after playback start failure")
	}
}

func TestStartFailsWhenCaptureRejects(t *testing.T) {
	capture := &failingCapture{fakeCapture{channels: 2, fpb: 288, sr: 48000}}
	_, playback := newFakeStreams(nil)

	o := New(nil)
	if o.Start(capture, playback) {
		t.Fatal("Start() should fail when capture RequestStart fails")
	}
	if playback.started {
		t.Error("playback should not have been started")
	}
}

// testFrames is sized to stay well within the output ring's headroom once
// the 20-burst silence priming is accounted for (ring capacity is ~200ms
// at 48kHz, i.e. 9600 frames, rounded up to 16384; priming already
// occupies 5760 of those), so
// waitUntilDrained can observe a full drain without anyone calling PullTo.
const testFrames = 2880 // 10 bursts of 288, an exact number of STFT hops

func TestSilenceInSilenceOut(t *testing.T) {
	data := make([]float32, testFrames*2) // stereo zeros
	capture, playback := newFakeStreams(data)

	o := New(nil)
	if !o.Start(capture, playback) {
		t.Fatal("Start() failed")
	}
	defer o.Stop()

	waitUntilDrained(t, o, time.Second)

	out := make([]float32, 288*2)
	o.PullTo(out)
	for i, v := range out {
		if v > 1e-6 || v < -1e-6 {
			t.Fatalf("out[%d] = %v, want ~0 (silence in, silence out)", i, v)
		}
	}
}

func TestSinePreservationAmplitude(t *testing.T) {
	n := testFrames
	sine := sigtest.SineWave(n, 48000, 440, 0.5)
	data := make([]float32, n*2)
	for i, v := range sine {
		data[i*2] = v
		data[i*2+1] = v
	}

	capture, playback := newFakeStreams(data)
	o := New(nil)
	if !o.Start(capture, playback) {
		t.Fatal("Start() failed")
	}
	defer o.Stop()

	waitUntilDrained(t, o, time.Second)

	// Collect a long run of output directly off the ring (bypassing
	// PullTo's warm-up/underflow bookkeeping, which is tested separately)
	// and compare RMS amplitude against the known input sine's RMS. Exact
	// sample-for-sample phase alignment would require modeling the
	// pipeline's full group delay across three resampling stages; RMS
	// amplitude is a faithful, much simpler proxy for "is the signal
	// still there at the right level".
	collected := make([]float32, 0, n*2)
	buf := make([]float32, 2048)
	for o.outCons.AvailableToRead() > 0 {
		got := o.outCons.ReadInterleaved(buf)
		if got == 0 {
			break
		}
		collected = append(collected, buf[:got*2]...)
	}

	if len(collected) < 4000 {
		t.Fatalf("collected too little output: %d frames", len(collected)/2)
	}

	left := make([]float32, len(collected)/2)
	for i := range left {
		left[i] = collected[i*2]
	}

	// Skip the startup transient (priming, group delay, and the OLA
	// normalization ring's own warm-up) before measuring: primeBursts
	// bursts of silence, then the STFT's 416-sample 16kHz group delay,
	// which is 3*416 frames at 48kHz.
	skip := primeBursts*288 + 3*416
	if skip >= len(left) {
		t.Fatalf("not enough output past the transient: %d samples", len(left))
	}
	measured := sigtest.RMS(left[skip:])
	wantRMS := 0.5 / 1.41421356 // sine RMS = amplitude/sqrt(2)

	if measured < wantRMS*0.4 || measured > wantRMS*1.6 {
		t.Errorf("output RMS = %v, want within 60%% of %v", measured, wantRMS)
	}
}

func TestRatioLawAtRingLevel(t *testing.T) {
	n := testFrames
	data := sigtest.WhiteNoise(n*2, 0.3, 5)

	capture, playback := newFakeStreams(data)
	o := New(nil)
	if !o.Start(capture, playback) {
		t.Fatal("Start() failed")
	}
	defer o.Stop()

	waitUntilDrained(t, o, time.Second)

	pushed := o.stftEngine.FramesPushed()
	hops := o.stftEngine.HopsProcessed()
	wantHops := pushed / stftHop
	if hops < wantHops-1 || hops > wantHops+1 {
		t.Errorf("HopsProcessed() = %d, want within 1 of pushed/H = %d", hops, wantHops)
	}
}

func TestOverflowCountingWhenPlaybackStarved(t *testing.T) {
	n := 200000 // far more than a ~200ms ring holds
	data := make([]float32, n*2)

	capture, playback := newFakeStreams(data)
	o := New(nil)
	if !o.Start(capture, playback) {
		t.Fatal("Start() failed")
	}
	defer o.Stop()

	// Never call PullTo: both rings back up. drainToOutput's gate stops
	// consuming the input ring once the output ring has less than a burst
	// of room, so the output ring never overflows; the input ring then
	// fills and its writes overflow. We can't wait for a full drain here
	// (it never happens) — just give the processing goroutine time to run.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && o.Overflows() == 0 {
		time.Sleep(time.Millisecond)
	}

	if o.Overflows() <= 0 {
		t.Error("Overflows() = 0, want > 0 after starving playback for a large input")
	}
}

func TestCleanShutdown(t *testing.T) {
	data := make([]float32, 48000*2)
	capture, playback := newFakeStreams(data)

	o := New(nil)
	if !o.Start(capture, playback) {
		t.Fatal("Start() failed")
	}

	start := time.Now()
	o.Stop()
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Errorf("Stop() took %v, want <= 50ms", elapsed)
	}
	if !capture.stopped || !playback.stopped {
		t.Error("Stop() did not request both streams to stop")
	}
}

func TestWarmUpSuppression(t *testing.T) {
	o := &Orchestrator{channels: 2}
	var ok bool
	o.outProd, o.outCons, ok = ring.New(64, 2)
	if !ok {
		t.Fatal("ring setup failed")
	}

	o.startedAt = time.Now()
	out := make([]float32, 20*2)
	o.PullTo(out) // ring empty: would normally underflow
	if o.Underflows() != 0 {
		t.Errorf("Underflows() = %d during warm-up, want 0", o.Underflows())
	}

	o.startedAt = time.Now().Add(-warmUpDuration - time.Millisecond)
	o.PullTo(out)
	if o.Underflows() == 0 {
		t.Error("Underflows() = 0 after warm-up window, want > 0")
	}
}
