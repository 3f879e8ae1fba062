package route_test

import (
	"errors"
	"testing"

	"github.com/dantte-lp/udpswitch/internal/route"
)

func TestNewTableInvariants(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()

	for n := 0; n < route.Channels; n++ {
		poa := route.PortOffset + n
		e := tbl.Lookup(poa)

		if e.Index != n {
			t.Fatalf("slot %d: Index = %d, want %d", n, e.Index, n)
		}
		if e.POA != poa {
			t.Fatalf("slot %d: POA = %d, want %d", n, e.POA, poa)
		}
		if e.Open {
			t.Fatalf("slot %d: Open = true, want false on a fresh table", n)
		}
	}
}

func TestOpenRewriteClose(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()
	poa := route.PortOffset

	dst := route.Endpoint{
		Port: route.PortOffset,
		IP:   [4]byte{10, 0, 0, 1},
		MAC:  [6]byte{0x02, 0, 0, 0, 0, 1},
	}

	if err := tbl.Open(poa, dst); err != nil {
		t.Fatalf("Open: %v", err)
	}

	got := tbl.Lookup(poa)
	if !got.Open {
		t.Fatalf("route not open after Open")
	}
	if got.Dst != dst {
		t.Fatalf("Dst = %+v, want %+v", got.Dst, dst)
	}

	if err := tbl.Close(poa); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got = tbl.Lookup(poa)
	if got.Open {
		t.Fatalf("route still open after Close")
	}
	// Dst is left intact for diagnostics (spec §4.1).
	if got.Dst != dst {
		t.Fatalf("Dst after close = %+v, want %+v (preserved)", got.Dst, dst)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()
	poa := route.PortOffset + 5

	if err := tbl.Close(poa); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := tbl.Close(poa); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	got := tbl.Lookup(poa)
	if got.Open {
		t.Fatalf("route open after two Close calls")
	}
}

func TestLookupOutOfRange(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()

	for _, poa := range []int{0, route.PortOffset - 1, route.ControlPort, route.ControlPort + 1000} {
		got := tbl.Lookup(poa)
		if got.Index != route.MissingIndex {
			t.Errorf("Lookup(%d).Index = %d, want %d", poa, got.Index, route.MissingIndex)
		}
	}
}

func TestOpenCloseOutOfRange(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()

	if err := tbl.Open(1, route.Endpoint{}); !errors.Is(err, route.ErrOutOfRange) {
		t.Errorf("Open(1) error = %v, want %v", err, route.ErrOutOfRange)
	}
	if err := tbl.Close(route.ControlPort + 1); !errors.Is(err, route.ErrOutOfRange) {
		t.Errorf("Close(ControlPort+1) error = %v, want %v", err, route.ErrOutOfRange)
	}
}

func TestConcurrentReadsDuringWrite(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()
	poa := route.PortOffset + 17
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			dst := route.Endpoint{Port: poa, IP: [4]byte{10, 0, 0, byte(i)}}
			_ = tbl.Open(poa, dst)
			_ = tbl.Close(poa)
		}
	}()

	// Concurrent readers must never observe a torn struct: every snapshot
	// still carries the slot's fixed Index and POA.
	for i := 0; i < 1000; i++ {
		e := tbl.Lookup(poa)
		if e.Index != 17 || e.POA != poa {
			t.Fatalf("torn read: %+v", e)
		}
	}
	<-done
}

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()

	tbl := route.NewTable()
	poa := route.PortOffset + 1

	dst := route.Endpoint{
		Port: poa,
		IP:   [4]byte{192, 168, 0, 1},
		MAC:  [6]byte{0x02, 1, 2, 3, 4, 5},
	}

	open := route.OpenMessage(poa, dst)
	if err := open.Apply(tbl); err != nil {
		t.Fatalf("Apply(open): %v", err)
	}

	got := tbl.Lookup(poa)
	if !got.Open || got.Dst != dst {
		t.Fatalf("after open Apply: %+v", got)
	}

	encoded, err := open.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := route.DecodeMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded != open {
		t.Fatalf("decoded = %+v, want %+v", decoded, open)
	}

	closeMsg := route.CloseMessage(poa)
	if err := closeMsg.Apply(tbl); err != nil {
		t.Fatalf("Apply(close): %v", err)
	}

	got = tbl.Lookup(poa)
	if got.Open {
		t.Fatalf("route open after close Apply")
	}
}

func TestDecodeMessageRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := route.DecodeMessage([]byte(`{"from":50000,"port":50000,"ip":"1.2.3.4","mac":"02:00:00:00:00:01","bogus":1}`))
	if err == nil {
		t.Fatalf("DecodeMessage accepted an unknown field")
	}
}

func TestDecodeMessageToleratesWhitespaceAndFieldOrder(t *testing.T) {
	t.Parallel()

	msg, err := route.DecodeMessage([]byte(`{
		"port": 50000,
		"from": 50000,
		"mac":  "02:00:00:00:00:01",
		"ip":   "10.0.0.1"
	}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.From != 50000 || msg.Port != 50000 {
		t.Fatalf("decoded = %+v", msg)
	}
}
