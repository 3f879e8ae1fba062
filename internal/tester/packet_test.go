package tester

import (
	"testing"

	"github.com/dantte-lp/udpswitch/internal/pkt"
	"github.com/dantte-lp/udpswitch/internal/route"
)

func TestBuildPacketParsesAsUDPForMe(t *testing.T) {
	t.Parallel()

	dst := route.Endpoint{Port: route.PortOffset + 4, IP: [4]byte{10, 0, 0, 1}, MAC: [6]byte{1, 2, 3, 4, 5, 6}}
	src := route.Endpoint{Port: route.PortOffset + 4, IP: [4]byte{10, 0, 0, 2}, MAC: [6]byte{6, 5, 4, 3, 2, 1}}

	frame := buildPacket(dst, src, 42)
	if len(frame) != FrameSize {
		t.Fatalf("frame length = %d, want %d", len(frame), FrameSize)
	}

	info := pkt.Parse(frame, dst.MAC)
	if !info.IsUDPForMe {
		t.Fatal("built packet did not classify as UDP-for-me")
	}
	if info.POA != dst.Port {
		t.Fatalf("POA = %d, want %d", info.POA, dst.Port)
	}

	n := readCounter(frame[info.AllHeadersSize:])
	if n != 42 {
		t.Fatalf("readCounter = %d, want 42", n)
	}
}

func TestFillCounterRepeatsEightBytePattern(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 37)
	fillCounter(buf, 0x0102030405060708)

	for i := 8; i < len(buf); i++ {
		if buf[i] != buf[i%8] {
			t.Fatalf("buf[%d] = %#x, want repeat of buf[%d] = %#x", i, buf[i], i%8, buf[i%8])
		}
	}
}

func TestCountersObserveAdvancesAndFlagsMismatch(t *testing.T) {
	t.Parallel()

	c := NewCounters(1)

	next := c.observe(0, 0)
	if next != 1 {
		t.Fatalf("observe(0,0) next = %d, want 1", next)
	}

	next = c.observe(0, 1)
	if next != 2 {
		t.Fatalf("observe(0,1) next = %d, want 2", next)
	}

	// Out-of-sequence arrival: expected 2, observed 9 -> drop counted, but
	// next still advances from the observed value, not the expected one.
	next = c.observe(0, 9)
	if next != 10 {
		t.Fatalf("observe(0,9) next = %d, want 10", next)
	}

	snap := c.Snapshot()
	if snap.Drop[0] != 1 {
		t.Fatalf("Drop[0] = %d, want 1", snap.Drop[0])
	}
	if snap.Recv[0] != 3 {
		t.Fatalf("Recv[0] = %d, want 3", snap.Recv[0])
	}
}
