// Package route implements the fixed-size, index-addressed forwarding
// table (spec §3, §4.1). The table is created once at startup, is never
// resized, and is mutated only by the control thread while being read by
// every forwarding worker without locks.
//
// Each slot stores an *Entry behind an atomic.Pointer. Table.Open and
// Table.Close swap the pointer to a freshly built, fully-populated Entry;
// readers atomically load the pointer and see either the entry before or
// the entry after a mutation, never a torn mix of old and new fields. This
// is the Go realization of the "release store on open after writing dst"
// ordering spec §5 requires, without a seqlock: the struct behind the
// pointer is immutable once published.
package route

import (
	"fmt"
	"sync/atomic"
)

// Channels is the total number of route slots: 30 S2Q groups * 8 sockets *
// 16 channels (spec §3, the "R30" topology).
const Channels = 30 * 8 * 16

// PortOffset is the first UDP destination port in the forwarding range.
const PortOffset = 50000

// ControlPort is the TCP port the control channel (C6) listens on.
const ControlPort = PortOffset + Channels

// Endpoint is a forwarding destination or a worker's own identity: an IPv4
// address, UDP port, and Ethernet MAC. Port -1 denotes "no destination".
type Endpoint struct {
	Port int
	IP   [4]byte
	MAC  [6]byte
}

// ClosedPort is the sentinel Endpoint.Port value for a closed route.
const ClosedPort = -1

// Entry is one forwarding route: the immutable snapshot behind a Table
// slot's atomic pointer.
type Entry struct {
	// Index is the dense slot index in [0, Channels).
	Index int

	// POA is the "port of arrival": PortOffset + Index.
	POA int

	// Dst is the rewrite destination. Diagnostic value only while closed.
	Dst Endpoint

	// Open reports whether this slot currently forwards traffic.
	Open bool
}

// MissingIndex is the Index value of the sentinel Entry returned by
// Table.Lookup for an out-of-range or mismatched port of arrival.
const MissingIndex = -1

// missing is the shared sentinel returned by a failed Lookup.
var missing = &Entry{Index: MissingIndex}

// Table is the fixed-size forwarding table (spec §3, §4.1). The zero value
// is not ready for use; construct with NewTable.
type Table struct {
	slots [Channels]atomic.Pointer[Entry]
}

// NewTable returns a Table with every slot initialized closed, satisfying
// invariant (1): slots[n].Index == n and slots[n].POA == PortOffset+n.
func NewTable() *Table {
	t := &Table{}
	for n := 0; n < Channels; n++ {
		t.slots[n].Store(&Entry{Index: n, POA: PortOffset + n})
	}
	return t
}

// indexForPOA converts a port of arrival to a slot index, or -1 if out of
// range.
func indexForPOA(poa int) int {
	index := poa - PortOffset
	if index < 0 || index >= Channels {
		return MissingIndex
	}
	return index
}

// Open installs dst as the forwarding destination for the route whose port
// of arrival is poa and marks it open. Returns an error if poa is out of
// range.
func (t *Table) Open(poa int, dst Endpoint) error {
	index := indexForPOA(poa)
	if index < 0 {
		return fmt.Errorf("route: open poa %d: %w", poa, ErrOutOfRange)
	}

	t.slots[index].Store(&Entry{
		Index: index,
		POA:   PortOffset + index,
		Dst:   dst,
		Open:  true,
	})

	return nil
}

// Close clears the open flag for the route whose port of arrival is poa.
// The destination is left in place for diagnostics. Returns an error if
// poa is out of range. Closing an already-closed route is a no-op beyond
// the republish.
func (t *Table) Close(poa int) error {
	index := indexForPOA(poa)
	if index < 0 {
		return fmt.Errorf("route: close poa %d: %w", poa, ErrOutOfRange)
	}

	cur := t.slots[index].Load()
	t.slots[index].Store(&Entry{
		Index: index,
		POA:   PortOffset + index,
		Dst:   cur.Dst,
		Open:  false,
	})

	return nil
}

// Lookup returns a by-value snapshot of the route for the given port of
// arrival. An out-of-range poa returns the shared sentinel Entry with
// Index == MissingIndex. A redundant re-check of route[index].poa == poa
// is deliberately omitted: every slot's POA field is fixed at
// PortOffset+index for the table's entire lifetime (invariant 1), so that
// check could never fail.
func (t *Table) Lookup(poa int) Entry {
	index := indexForPOA(poa)
	if index < 0 {
		return *missing
	}
	return *t.slots[index].Load()
}
