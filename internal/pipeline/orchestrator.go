// SPDX-License-Identifier: MIT
// Package pipeline wires internal/ring, internal/resample and internal/stft
// into the end-to-end full-duplex dataflow described in SPEC_FULL.md §4.4:
// capture -> downsample -> mono mix -> STFT -> upsample -> duplicate ->
// playback, bridged by three SPSC rings.
package pipeline

import (
	"runtime"
	"sync/atomic"
	"time"

	"fdaudio/internal/log"
	"fdaudio/internal/resample"
	"fdaudio/internal/ring"
	"fdaudio/internal/stft"
)

const (
	captureTimeout  = 10 * time.Millisecond
	primeBursts     = 20
	warmUpDuration  = 300 * time.Millisecond
	diagnosticEvery = time.Second
	stftHop         = 96
)

// Orchestrator owns the processing goroutine, both 48 kHz rings, the small
// 16 kHz mono ring, the resamplers, the STFT engine, and every scratch
// buffer the hot path touches. All scratch buffers are sized once in
// Start and never resized.
type Orchestrator struct {
	capture  CaptureStream
	playback PlaybackStream

	inProd *ring.Producer
	inCons *ring.Consumer

	outProd *ring.Producer
	outCons *ring.Consumer

	monoProd *ring.Producer
	monoCons *ring.Consumer

	downL, downR resample.Down3x
	upMono       resample.Up3x
	stftEngine   *stft.Engine

	channels int
	fpb      int

	// scratch, sized at Start per the spec's scratch-buffer discipline
	tmpIn      []float32 // fpb*channels, capture read target
	tmpXfer    []float32 // fpb*channels, one input-ring burst
	l48, r48   []float32 // fpb
	l16, r16   []float32 // fpb/3+1
	mono16     []float32 // fpb/3+1
	hopIn16    []float32 // stftHop
	hopOut16   []float32 // stftHop
	up48Mono   []float32 // stftHop*3
	l48b, r48b []float32 // stftHop*3
	tmpOut     []float32 // stftHop*3*channels

	running   atomic.Bool
	startedAt time.Time

	overflows  atomic.Int64
	underflows atomic.Int64

	reporter *Reporter
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs an Orchestrator. Reporter may be nil, in which case no
// periodic diagnostic record is emitted.
func New(reporter *Reporter) *Orchestrator {
	return &Orchestrator{reporter: reporter}
}

// Start opens the dataflow: it sizes the rings and scratch buffers from
// the playback stream's channel count, frames-per-burst and sample rate,
// primes the output ring with silence, requests both streams to start,
// and spawns the processing goroutine. On any failure it rolls back a
// successfully-started stream and returns false, matching the spec's
// start() contract.
func (o *Orchestrator) Start(capture CaptureStream, playback PlaybackStream) bool {
	if capture == nil || playback == nil {
		return false
	}
	o.capture = capture
	o.playback = playback

	ch := playback.ChannelCount()
	fpb := playback.FramesPerBurst()
	sr := playback.SampleRate()
	if ch <= 0 || fpb <= 0 || sr <= 0 {
		return false
	}
	o.channels = ch
	o.fpb = fpb

	capFrames := int(sr) / 5 // ~200ms
	var ok bool
	o.inProd, o.inCons, ok = ring.New(capFrames, ch)
	if !ok {
		return false
	}
	o.outProd, o.outCons, ok = ring.New(capFrames, ch)
	if !ok {
		return false
	}
	cap16 := capFrames / 3
	o.monoProd, o.monoCons, ok = ring.New(cap16, 1)
	if !ok {
		return false
	}

	o.tmpIn = make([]float32, fpb*ch)
	o.tmpXfer = make([]float32, fpb*ch)
	o.l48 = make([]float32, fpb)
	o.r48 = make([]float32, fpb)
	o.l16 = make([]float32, fpb/3+1)
	o.r16 = make([]float32, fpb/3+1)
	o.mono16 = make([]float32, fpb/3+1)
	o.hopIn16 = make([]float32, stftHop)
	o.hopOut16 = make([]float32, stftHop)
	o.up48Mono = make([]float32, stftHop*3)
	o.l48b = make([]float32, stftHop*3)
	o.r48b = make([]float32, stftHop*3)
	o.tmpOut = make([]float32, stftHop*3*ch)

	o.stftEngine = stft.NewEngine()
	o.downL = resample.Down3x{}
	o.downR = resample.Down3x{}
	o.upMono.Reset()

	// Prime the output ring with ~20 bursts of silence to avoid an
	// underflow on the very first playback callback.
	zeros := make([]float32, fpb*ch)
	for i := 0; i < primeBursts; i++ {
		o.outProd.WriteInterleaved(zeros)
	}

	o.startedAt = time.Now()
	o.overflows.Store(0)
	o.underflows.Store(0)

	if err := capture.RequestStart(); err != nil {
		log.Errorf("pipeline: capture RequestStart failed: %v", err)
		return false
	}
	if err := playback.RequestStart(); err != nil {
		log.Errorf("pipeline: playback RequestStart failed: %v", err)
		_ = capture.RequestStop() // best-effort rollback
		return false
	}

	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	o.running.Store(true)

	go o.processingLoop()

	return true
}

// Stop signals the processing goroutine to exit, waits for it, and
// requests both streams to stop on a best-effort basis.
func (o *Orchestrator) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	close(o.stopCh)
	<-o.doneCh

	if o.playback != nil {
		if err := o.playback.RequestStop(); err != nil {
			log.Warnf("pipeline: playback RequestStop failed: %v", err)
		}
	}
	if o.capture != nil {
		if err := o.capture.RequestStop(); err != nil {
			log.Warnf("pipeline: capture RequestStop failed: %v", err)
		}
	}
}

// PullTo is invoked from the playback device's own callback. It reads up
// to len(out)/channels frames from the output ring, zero-fills any
// shortfall, and — outside the 300ms warm-up window — adds the deficit to
// the underflow counter. It always fills out completely.
func (o *Orchestrator) PullTo(out []float32) {
	frames := len(out) / o.channels
	got := o.outCons.ReadInterleaved(out)
	if got < frames {
		clear(out[got*o.channels:])
		if time.Since(o.startedAt) >= warmUpDuration {
			o.underflows.Add(int64(frames - got))
		}
	}
}

// Overflows returns the cumulative count of dropped frames across all
// rings.
func (o *Orchestrator) Overflows() int64 { return o.overflows.Load() }

// Underflows returns the cumulative count of silence-padded frames
// handed to PullTo outside the warm-up window.
func (o *Orchestrator) Underflows() int64 { return o.underflows.Load() }

func (o *Orchestrator) processingLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(o.doneCh)

	lastDiag := time.Now()
	var lastHops, lastPushed, lastPopped uint64

	for o.running.Load() {
		select {
		case <-o.stopCh:
			return
		default:
		}

		got, err := o.capture.Read(o.tmpIn, o.fpb, captureTimeout)
		if err != nil || got <= 0 {
			continue
		}

		wrote := o.inProd.WriteInterleaved(o.tmpIn[:got*o.channels])
		if wrote < got {
			o.overflows.Add(int64(got - wrote))
		}

		o.drainToOutput()

		if time.Since(lastDiag) >= diagnosticEvery {
			lastDiag = time.Now()
			if o.reporter != nil {
				hops := o.stftEngine.HopsProcessed()
				pushed := o.stftEngine.FramesPushed()
				popped := o.stftEngine.FramesPopped()
				o.reporter.Report(Stats{
					InputRingFill:    o.inCons.AvailableToRead(),
					OutputRingFill:   o.outCons.AvailableToRead(),
					Overflows:        o.overflows.Load(),
					Underflows:       o.underflows.Load(),
					HopsDelta:        hops - lastHops,
					HopsTotal:        hops,
					FramesPushedDelt: pushed - lastPushed,
					FramesPoppedDelt: popped - lastPopped,
				})
				lastHops, lastPushed, lastPopped = hops, pushed, popped
			}
		}
	}
}

// drainToOutput runs the 48k->16k->STFT->48k round trip while both the
// input ring has a full burst available and the output ring has room for
// one, per spec §4.4 step 3.
func (o *Orchestrator) drainToOutput() {
	for min(o.inCons.AvailableToRead(), o.outProd.AvailableToWrite()) >= o.fpb {
		rd := o.inCons.ReadInterleaved(o.tmpXfer[:o.fpb*o.channels])
		if rd != o.fpb {
			break
		}

		deinterleave(o.tmpXfer[:rd*o.channels], o.l48[:rd], o.r48[:rd])

		outL := o.downL.Process(o.l48[:rd], o.l16)
		outR := o.downR.Process(o.r48[:rd], o.r16)
		out16 := min(outL, outR)

		for i := 0; i < out16; i++ {
			o.mono16[i] = 0.5 * (o.l16[i] + o.r16[i])
		}

		wM := o.monoProd.WriteInterleaved(o.mono16[:out16])
		if wM < out16 {
			o.overflows.Add(int64(out16 - wM))
		}

		for o.monoCons.AvailableToRead() >= stftHop {
			o.monoCons.ReadInterleaved(o.hopIn16)

			o.stftEngine.PushTimeDomain(o.hopIn16)
			got16 := o.stftEngine.PopTimeDomain(o.hopOut16)
			if got16 != stftHop {
				continue
			}

			up := o.upMono.Process(o.hopOut16, o.up48Mono)

			for i := 0; i < up; i++ {
				o.l48b[i] = o.up48Mono[i]
				o.r48b[i] = o.up48Mono[i]
			}

			interleave(o.l48b[:up], o.r48b[:up], o.tmpOut[:up*o.channels])
			wr := o.outProd.WriteInterleaved(o.tmpOut[:up*o.channels])
			if wr < up {
				o.overflows.Add(int64(up - wr))
			}
		}
	}
}

func deinterleave(inter, l, r []float32) {
	for i := range l {
		l[i] = inter[i*2]
		r[i] = inter[i*2+1]
	}
}

func interleave(l, r, inter []float32) {
	for i := range l {
		inter[i*2] = l[i]
		inter[i*2+1] = r[i]
	}
}
