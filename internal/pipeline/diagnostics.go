// SPDX-License-Identifier: MIT
package pipeline

import "fdaudio/internal/log"

// Stats is the periodic (~1 Hz) diagnostic record described in
// SPEC_FULL.md §4.4: ring occupancy, cumulative over/underflow counters,
// and STFT throughput deltas/totals for the preceding interval.
type Stats struct {
	InputRingFill  int   `json:"input_ring_fill"`
	OutputRingFill int   `json:"output_ring_fill"`
	Overflows      int64 `json:"overflows"`
	Underflows     int64 `json:"underflows"`

	HopsDelta        uint64 `json:"hops_delta"`
	HopsTotal        uint64 `json:"hops_total"`
	FramesPushedDelt uint64 `json:"frames_pushed_delta"`
	FramesPoppedDelt uint64 `json:"frames_popped_delta"`
}

// StatsSink receives periodic diagnostic records. internal/transport's
// UDP publisher, WebSocket broadcaster and logging fallback all implement
// it by wrapping their generic Transport.Send(any).
type StatsSink interface {
	Send(stats any) error
}

// Reporter adapts a StatsSink into the single Report call the processing
// loop makes once per second. It calls the sink's Send synchronously on
// the processing goroutine; Send errors are logged and dropped.
type Reporter struct {
	sink StatsSink
}

// NewReporter wraps sink. A nil sink is valid and makes Report a no-op,
// matching Orchestrator's nil-reporter handling.
func NewReporter(sink StatsSink) *Reporter {
	return &Reporter{sink: sink}
}

// Report sends one Stats record, logging (never panicking) on failure.
func (r *Reporter) Report(stats Stats) {
	if r == nil || r.sink == nil {
		return
	}
	if err := r.sink.Send(stats); err != nil {
		log.Warnf("pipeline: diagnostics sink error: %v", err)
	}
}
