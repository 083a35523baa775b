// SPDX-License-Identifier: MIT
// Package ring implements a lock-free single-producer/single-consumer queue
// of interleaved multi-channel float32 frames. It is the sole synchronization
// point between the pipeline's processing goroutine and the playback
// callback (internal/pipeline).
package ring

import (
	"sync/atomic"

	"fdaudio/pkg/bitint"
)

// shared is the backing storage and index pair jointly owned by a Producer
// and a Consumer created together by New. Exactly one goroutine may call
// Producer methods and exactly one (possibly different) goroutine may call
// Consumer methods; either side may observe the other's counter.
type shared struct {
	data     []float32
	channels int
	capacity int // frames, power of two
	mask     int

	writePos atomic.Uint64 // frames; mutated only by Producer
	readPos  atomic.Uint64 // frames; mutated only by Consumer
}

// Producer is the write-side handle of an SPSC ring. It is the only type
// permitted to advance writePos.
type Producer struct {
	s *shared
}

// Consumer is the read-side handle of an SPSC ring. It is the only type
// permitted to advance readPos.
type Consumer struct {
	s *shared
}

// New allocates a ring with room for at least capacityFrames frames of
// channels samples each, rounding capacity up to the next power of two
// (minimum 2). It returns false for non-positive arguments, in which case
// the returned handles are nil.
func New(capacityFrames, channels int) (*Producer, *Consumer, bool) {
	if capacityFrames <= 0 || channels <= 0 {
		return nil, nil, false
	}
	capacity := bitint.NextPowerOfTwo(capacityFrames)
	if capacity < 2 {
		capacity = 2
	}
	s := &shared{
		data:     make([]float32, capacity*channels),
		channels: channels,
		capacity: capacity,
		mask:     capacity - 1,
	}
	return &Producer{s: s}, &Consumer{s: s}, true
}

// Channels reports the frame width.
func (p *Producer) Channels() int { return p.s.channels }

// Channels reports the frame width.
func (c *Consumer) Channels() int { return c.s.channels }

// CapacityFrames reports the ring's frame capacity (a power of two).
func (p *Producer) CapacityFrames() int { return p.s.capacity }

// CapacityFrames reports the ring's frame capacity (a power of two).
func (c *Consumer) CapacityFrames() int { return c.s.capacity }

// AvailableToRead returns the number of frames the consumer could read
// right now. Safe to call from either side for flow control.
func (s *shared) availableToRead() int {
	r := s.readPos.Load()
	w := s.writePos.Load()
	return int(w - r)
}

// AvailableToRead returns the number of frames ready for Read.
func (c *Consumer) AvailableToRead() int { return c.s.availableToRead() }

// AvailableToRead lets the producer observe consumer progress for flow
// control without granting it read access.
func (p *Producer) AvailableToRead() int { return p.s.availableToRead() }

// AvailableToWrite returns the number of free frame slots.
func (p *Producer) AvailableToWrite() int {
	return p.s.capacity - p.s.availableToRead()
}

// AvailableToWrite lets the consumer observe producer headroom for flow
// control without granting it write access.
func (c *Consumer) AvailableToWrite() int {
	return c.s.capacity - c.s.availableToRead()
}

// WriteInterleaved copies up to len(src)/channels frames from src into the
// ring, clamped to AvailableToWrite. It returns the number of frames
// actually written. The write is split into at most two memcpy-equivalent
// segments around the ring boundary, then published with a single release
// store of writePos.
func (p *Producer) WriteInterleaved(src []float32) int {
	s := p.s
	frames := len(src) / s.channels
	if avail := p.AvailableToWrite(); frames > avail {
		frames = avail
	}
	if frames <= 0 {
		return 0
	}

	w := s.writePos.Load()
	start := int(w) & s.mask
	first := frames
	if remain := s.capacity - start; first > remain {
		first = remain
	}
	second := frames - first

	copy(s.data[start*s.channels:], src[:first*s.channels])
	if second > 0 {
		copy(s.data[:second*s.channels], src[first*s.channels:frames*s.channels])
	}

	s.writePos.Store(w + uint64(frames))
	return frames
}

// ReadInterleaved copies up to len(dst)/channels frames out of the ring,
// clamped to AvailableToRead. It returns the number of frames actually
// read, then publishes readPos with a single release store.
func (c *Consumer) ReadInterleaved(dst []float32) int {
	s := c.s
	frames := len(dst) / s.channels
	if avail := c.AvailableToRead(); frames > avail {
		frames = avail
	}
	if frames <= 0 {
		return 0
	}

	r := s.readPos.Load()
	start := int(r) & s.mask
	first := frames
	if remain := s.capacity - start; first > remain {
		first = remain
	}
	second := frames - first

	copy(dst[:first*s.channels], s.data[start*s.channels:])
	if second > 0 {
		copy(dst[first*s.channels:frames*s.channels], s.data[:second*s.channels])
	}

	s.readPos.Store(r + uint64(frames))
	return frames
}
