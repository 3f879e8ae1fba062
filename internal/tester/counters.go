package tester

import "sync/atomic"

// Counters tracks the tester's per-route send/receive/drop activity (spec
// §4.9, §8 invariant: after priming and `packets` packets per route, each
// route's observed max n equals packets and drop == 0 iff the switch never
// reorders).
type Counters struct {
	sent    []atomic.Uint64
	recv    []atomic.Uint64
	drop    []atomic.Uint64
	nextSeq []atomic.Uint64 // next expected sequence number per route
}

// NewCounters allocates per-route counters for n routes.
func NewCounters(n int) *Counters {
	return &Counters{
		sent:    make([]atomic.Uint64, n),
		recv:    make([]atomic.Uint64, n),
		drop:    make([]atomic.Uint64, n),
		nextSeq: make([]atomic.Uint64, n),
	}
}

// observe compares the received sequence number against the expected one,
// bumps the drop counter on mismatch, and advances the route's next
// expected sequence number to n+1 regardless. Returns the value to send
// next.
func (c *Counters) observe(index int, n uint64) (next uint64) {
	expected := c.nextSeq[index].Load()
	if n != expected {
		c.drop[index].Add(1)
	}
	c.recv[index].Add(1)

	next = n + 1
	c.nextSeq[index].Store(next)
	return next
}

// Snapshot is a point-in-time copy of every route's counters.
type Snapshot struct {
	Sent, Recv, Drop, NextSeq []uint64
}

// Snapshot copies the current counters out for metrics/diagnostics.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Sent:    make([]uint64, len(c.sent)),
		Recv:    make([]uint64, len(c.recv)),
		Drop:    make([]uint64, len(c.drop)),
		NextSeq: make([]uint64, len(c.nextSeq)),
	}
	for i := range c.sent {
		s.Sent[i] = c.sent[i].Load()
		s.Recv[i] = c.recv[i].Load()
		s.Drop[i] = c.drop[i].Load()
		s.NextSeq[i] = c.nextSeq[i].Load()
	}
	return s
}
