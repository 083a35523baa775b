// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"fdaudio/internal/log"
	"fdaudio/internal/pipeline"
)

// StatsPublisher implements pipeline.StatsSink by packing each
// pipeline.Stats record into a small binary packet and sending it via a
// Sender, adapted from the teacher's UDPPublisher.buildAndSendPacket
// (which packed FFT magnitudes); here the periodic cadence is owned by
// pipeline.Reporter rather than an independent ticker, so Publisher only
// needs to react to Send.
type StatsPublisher struct {
	sender       *Sender
	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewStatsPublisher wraps sender. sender must not be nil.
func NewStatsPublisher(sender *Sender) (*StatsPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp: StatsPublisher: sender cannot be nil")
	}
	return &StatsPublisher{sender: sender, packetBuffer: new(bytes.Buffer)}, nil
}

/*
Packet layout (BigEndian):

	Sequence Number     uint32   4
	Timestamp (UnixNano) int64   8
	InputRingFill        int32   4
	OutputRingFill       int32   4
	Overflows            int64   8
	Underflows           int64   8
	HopsDelta            uint64  8
	HopsTotal            uint64  8
	FramesPushedDelta    uint64  8
	FramesPoppedDelta    uint64  8
*/
func (p *StatsPublisher) buildAndSendPacket(stats pipeline.Stats) error {
	p.sequenceNum++
	timestamp := time.Now().UnixNano()

	p.packetBuffer.Reset()

	fields := []any{
		p.sequenceNum,
		timestamp,
		int32(stats.InputRingFill),
		int32(stats.OutputRingFill),
		stats.Overflows,
		stats.Underflows,
		stats.HopsDelta,
		stats.HopsTotal,
		stats.FramesPushedDelt,
		stats.FramesPoppedDelt,
	}
	for _, f := range fields {
		if err := binary.Write(p.packetBuffer, binary.BigEndian, f); err != nil {
			return fmt.Errorf("udp: failed to pack stats packet: %w", err)
		}
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	log.Debugf("udp: sent stats packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	return nil
}

// Send implements pipeline.StatsSink.
func (p *StatsPublisher) Send(data any) error {
	stats, ok := data.(pipeline.Stats)
	if !ok {
		return fmt.Errorf("udp: StatsPublisher: unsupported payload type %T", data)
	}
	return p.buildAndSendPacket(stats)
}

// Close closes the underlying sender.
func (p *StatsPublisher) Close() error { return p.sender.Close() }

var _ pipeline.StatsSink = (*StatsPublisher)(nil)
