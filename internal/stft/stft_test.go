// SPDX-License-Identifier: MIT
package stft

import (
	"math"
	"testing"

	"fdaudio/pkg/sigtest"
)

func TestCountersMonotonicAndHopQuantum(t *testing.T) {
	e := NewEngine()

	in := sigtest.WhiteNoise(96*20, 0.2, 7)
	var prevPushed, prevPopped, prevHops uint64

	out := make([]float32, hop)
	for i := 0; i < len(in); i += hop {
		e.PushTimeDomain(in[i : i+hop])

		if e.FramesPushed() < prevPushed {
			t.Fatal("FramesPushed went backwards")
		}
		prevPushed = e.FramesPushed()

		wantHops := prevPushed / hop
		if e.HopsProcessed() != wantHops {
			t.Fatalf("HopsProcessed() = %d, want %d", e.HopsProcessed(), wantHops)
		}

		got := e.PopTimeDomain(out)
		if got != hop {
			t.Fatalf("PopTimeDomain() = %d, want %d (per-hop quantum)", got, hop)
		}

		if e.FramesPopped() < prevPopped {
			t.Fatal("FramesPopped went backwards")
		}
		prevPopped = e.FramesPopped()

		if e.HopsProcessed() < prevHops {
			t.Fatal("HopsProcessed went backwards")
		}
		prevHops = e.HopsProcessed()
	}
}

func TestNormalizationProtectionAtStartup(t *testing.T) {
	e := NewEngine()
	out := make([]float32, hop)

	// No data pushed yet: nothing available, must not panic or produce
	// NaN/Inf, and must report zero produced.
	got := e.PopTimeDomain(out)
	if got != 0 {
		t.Fatalf("PopTimeDomain() before warm-up = %d, want 0", got)
	}

	// Push exactly one hop and check the resulting values are finite.
	e.PushTimeDomain(sigtest.SineWave(hop, 16000, 440, 0.3))
	got = e.PopTimeDomain(out)
	if got != hop {
		t.Fatalf("PopTimeDomain() = %d, want %d", got, hop)
	}
	for i, v := range out[:got] {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("out[%d] = %v, not finite", i, v)
		}
	}
}

func TestIdentityReconstructionSteadyState(t *testing.T) {
	e := NewEngine()

	const n = 8192
	in := sigtest.WhiteNoise(n, 1.0, 42)

	out := make([]float32, 0, n)
	buf := make([]float32, hop)
	for i := 0; i+hop <= n; i += hop {
		e.PushTimeDomain(in[i : i+hop])
		got := e.PopTimeDomain(buf)
		out = append(out, buf[:got]...)
	}

	// The engine's end-to-end group delay is leadPad+histLen = 416 samples
	// (32 zero-pad + 384 history), not a full 512-sample FFT frame: the
	// analysis window's last 96 samples are the newly pushed hop itself,
	// contributing no extra delay. Discard accordingly before comparing,
	// per spec §8.
	const delay = leadPad + histLen
	if len(out) <= delay {
		t.Fatalf("not enough output produced: %d", len(out))
	}

	alignedIn := in[:len(out)-delay]
	alignedOut := out[delay:]

	rmsErr := sigtest.RMSError(alignedIn, alignedOut)
	if rmsErr > 1e-3 {
		t.Errorf("RMS reconstruction error = %v, want <= 1e-3", rmsErr)
	}
}

func TestRingWrapSafety(t *testing.T) {
	e := NewEngine()

	hopsToWrap := olaCap/hop + 4
	in := sigtest.WhiteNoise(hopsToWrap*hop, 0.5, 99)

	buf := make([]float32, hop)
	var collected []float32
	for i := 0; i+hop <= len(in); i += hop {
		e.PushTimeDomain(in[i : i+hop])
		got := e.PopTimeDomain(buf)
		collected = append(collected, buf[:got]...)
		for _, v := range buf[:got] {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("non-finite sample after ring wrap at hop %d", i/hop)
			}
		}
	}

	if len(collected) != len(in) {
		t.Fatalf("collected %d samples, want %d", len(collected), len(in))
	}
}
