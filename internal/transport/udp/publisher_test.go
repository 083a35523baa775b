// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"fdaudio/internal/pipeline"
)

func TestStatsPublisherPacketLayout(t *testing.T) {
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	listener, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer listener.Close()

	sender, err := NewSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}
	defer sender.Close()

	pub, err := NewStatsPublisher(sender)
	if err != nil {
		t.Fatalf("NewStatsPublisher failed: %v", err)
	}

	stats := pipeline.Stats{
		InputRingFill:    100,
		OutputRingFill:   200,
		Overflows:        3,
		Underflows:       4,
		HopsDelta:        5,
		HopsTotal:        50,
		FramesPushedDelt: 480,
		FramesPoppedDelt: 480,
	}

	if err := pub.Send(stats); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	buf := make([]byte, 512)
	listener.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP failed: %v", err)
	}

	const wantLen = 4 + 8 + 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8
	if n != wantLen {
		t.Fatalf("packet length = %d, want %d", n, wantLen)
	}

	seq := binary.BigEndian.Uint32(buf[0:4])
	if seq != 1 {
		t.Errorf("sequence = %d, want 1", seq)
	}
	inputFill := int32(binary.BigEndian.Uint32(buf[12:16]))
	if inputFill != 100 {
		t.Errorf("InputRingFill = %d, want 100", inputFill)
	}
	overflows := int64(binary.BigEndian.Uint64(buf[20:28]))
	if overflows != 3 {
		t.Errorf("Overflows = %d, want 3", overflows)
	}
}

func TestStatsPublisherRejectsWrongPayloadType(t *testing.T) {
	addr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	listener, _ := net.ListenUDP("udp", addr)
	defer listener.Close()

	sender, _ := NewSender(listener.LocalAddr().String())
	defer sender.Close()

	pub, _ := NewStatsPublisher(sender)
	if err := pub.Send("not stats"); err == nil {
		t.Error("expected error for non-Stats payload")
	}
}

func TestNewStatsPublisherRejectsNilSender(t *testing.T) {
	if _, err := NewStatsPublisher(nil); err == nil {
		t.Error("expected error for nil sender")
	}
}
