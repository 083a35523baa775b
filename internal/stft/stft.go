// SPDX-License-Identifier: MIT
// Package stft implements the pipeline's streaming overlap-add short-time
// Fourier transform stage: a fixed-parameter (N=512, H=96, L=480) analysis/
// synthesis loop over mono 16 kHz audio. The spectral processing step
// between forward and inverse transform is currently the identity (Y=X) —
// the designated extension point for future spectral effects.
package stft

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	nfft = 512
	hop  = 96
	// 384 samples of rolling history + 96 new samples = 480, the analysis
	// window length; the remaining 32 of the 512 FFT slot are a leading
	// zero pad (spec §4.3 step 1).
	histLen  = 384
	leadPad  = 32
	olaCap   = 1 << 15 // power of two, >= 8*hop per spec §3
	olaMask  = olaCap - 1
	epsNorm  = 1e-8
	coeffLen = nfft/2 + 1
)

// Engine is a streaming STFT analysis/synthesis processor. It is built for
// single-threaded use: PushTimeDomain/PopTimeDomain are not safe to call
// concurrently with each other, matching the spec's "processing thread
// both produces and consumes" contract. The frame counters are atomic
// only so a diagnostics reporter on a different goroutine can read them
// without a data race.
type Engine struct {
	fft *fourier.FFT

	window [nfft]float32 // Hann, symmetric (non-periodic) convention

	hopBuf  [hop]float32
	hopFill int

	hist384 [histLen]float32

	// scratch for one hop's worth of FFT work
	analysisFrame [nfft]float64
	coeffs        []complex128 // length coeffLen, reused every hop
	synthFrame    []float64    // length nfft, reused every hop

	olaRing  [olaCap]float32
	normRing [olaCap]float32
	olaWrite int
	olaRead  int
	avail    int

	pushed atomic.Uint64
	popped atomic.Uint64
	hops   atomic.Uint64
}

// NewEngine constructs an Engine with its Hann window precomputed and all
// scratch buffers preallocated; nothing it does after construction
// allocates.
func NewEngine() *Engine {
	e := &Engine{
		fft:        fourier.NewFFT(nfft),
		coeffs:     make([]complex128, coeffLen),
		synthFrame: make([]float64, nfft),
	}
	for n := range e.window {
		e.window[n] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(n)/float64(nfft-1))))
	}
	return e
}

// PushTimeDomain appends mono 16 kHz samples to the engine. Every time the
// internal hop buffer fills to H=96 samples it triggers processOneHop and
// advances the rolling history. It never allocates.
func (e *Engine) PushTimeDomain(samples []float32) {
	e.pushed.Add(uint64(len(samples)))

	idx := 0
	for idx < len(samples) {
		need := hop - e.hopFill
		take := len(samples) - idx
		if take > need {
			take = need
		}
		copy(e.hopBuf[e.hopFill:e.hopFill+take], samples[idx:idx+take])
		e.hopFill += take
		idx += take

		if e.hopFill == hop {
			e.processOneHop()
			e.hopFill = 0

			// Roll history: drop the first H samples, append the hop.
			copy(e.hist384[:histLen-hop], e.hist384[hop:])
			copy(e.hist384[histLen-hop:], e.hopBuf[:])
		}
	}
}

// PopTimeDomain copies up to min(len(out), avail) normalized samples out of
// the OLA ring, zeroing the consumed cells so the ring can wrap safely. It
// returns the number of samples written.
func (e *Engine) PopTimeDomain(out []float32) int {
	want := len(out)
	if want > e.avail {
		want = e.avail
	}
	for i := 0; i < want; i++ {
		idx := (e.olaRead + i) & olaMask
		n := e.normRing[idx]
		if n > epsNorm {
			out[i] = e.olaRing[idx] / n
		} else {
			out[i] = 0
		}
		e.olaRing[idx] = 0
		e.normRing[idx] = 0
	}
	e.olaRead = (e.olaRead + want) & olaMask
	e.avail -= want
	e.popped.Add(uint64(want))
	return want
}

// FramesPushed returns the cumulative count of samples passed to
// PushTimeDomain.
func (e *Engine) FramesPushed() uint64 { return e.pushed.Load() }

// FramesPopped returns the cumulative count of samples returned by
// PopTimeDomain.
func (e *Engine) FramesPopped() uint64 { return e.popped.Load() }

// HopsProcessed returns the cumulative count of completed analysis/
// synthesis hops.
func (e *Engine) HopsProcessed() uint64 { return e.hops.Load() }

// processOneHop assembles the 512-sample analysis frame (32 leading
// zeros + 384 history + 96 new hop), windows it, forward-transforms it,
// applies the identity spectral step, inverse-transforms, windows again
// for synthesis, and overlap-adds the result into the OLA ring.
func (e *Engine) processOneHop() {
	for i := 0; i < leadPad; i++ {
		e.analysisFrame[i] = 0
	}
	for i := 0; i < histLen; i++ {
		e.analysisFrame[leadPad+i] = float64(e.hist384[i]) * float64(e.window[leadPad+i])
	}
	for i := 0; i < hop; i++ {
		e.analysisFrame[leadPad+histLen+i] = float64(e.hopBuf[i]) * float64(e.window[leadPad+histLen+i])
	}

	// Forward real FFT. The signal is real-valued and the spectral step
	// is the identity, so a real-to-complex/complex-to-real round trip
	// via gonum's fourier.FFT is equivalent to a full complex radix-2
	// transform on a conjugate-symmetric spectrum (see SPEC_FULL.md §4.3).
	e.coeffs = e.fft.Coefficients(e.coeffs, e.analysisFrame[:])

	// Spectral processing: identity (Y = X). Nothing to do.

	// Inverse FFT. fourier.FFT.Sequence does not normalize: a
	// Coefficients->Sequence round trip scales the signal by nfft, so
	// that has to be divided back out here before windowing.
	e.synthFrame = e.fft.Sequence(e.synthFrame, e.coeffs)

	for i := 0; i < nfft; i++ {
		v := float32(e.synthFrame[i]/float64(nfft)) * e.window[i]
		idx := (e.olaWrite + i) & olaMask
		e.olaRing[idx] += v
		w := e.window[i]
		e.normRing[idx] += w * w
	}
	e.olaWrite = (e.olaWrite + hop) & olaMask

	e.avail += hop
	e.hops.Add(1)
}
