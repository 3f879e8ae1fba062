package worker

import (
	"sync/atomic"

	"github.com/dantte-lp/udpswitch/internal/nic"
	"github.com/dantte-lp/udpswitch/internal/route"
)

// Counters holds one worker's per-route recv/send/drop counters, its NIC
// status histogram, and its TAP-forwarded count (spec §3's "Worker
// counters"). Counters are owned by the worker that increments them. They
// are atomics, so a Snapshot may be taken while the worker runs; the
// metrics collector does so at every scrape.
type Counters struct {
	recv []atomic.Uint64
	send []atomic.Uint64
	drop []atomic.Uint64

	status [5]atomic.Uint64 // indexed by nic.StatusCode

	tap atomic.Uint64
}

// NewCounters allocates a Counters sized for route.Channels routes.
func NewCounters() *Counters {
	return &Counters{
		recv: make([]atomic.Uint64, route.Channels),
		send: make([]atomic.Uint64, route.Channels),
		drop: make([]atomic.Uint64, route.Channels),
	}
}

// RecordRecv increments the recv counter for a route index. Out-of-range
// indices are silently ignored.
func (c *Counters) RecordRecv(index int) {
	if index < 0 || index >= len(c.recv) {
		return
	}
	c.recv[index].Add(1)
}

// RecordSend increments the send counter for a route index.
func (c *Counters) RecordSend(index int) {
	if index < 0 || index >= len(c.send) {
		return
	}
	c.send[index].Add(1)
}

// RecordDrop increments the drop counter for a route index.
func (c *Counters) RecordDrop(index int) {
	if index < 0 || index >= len(c.drop) {
		return
	}
	c.drop[index].Add(1)
}

// RecordStatus increments the NIC status histogram bucket for s.
func (c *Counters) RecordStatus(s nic.StatusCode) {
	if int(s) < 0 || int(s) >= len(c.status) {
		return
	}
	c.status[s].Add(1)
}

// RecordTap increments the TAP-forwarded counter.
func (c *Counters) RecordTap() {
	c.tap.Add(1)
}

// Snapshot is a read-only copy of one worker's counters. Each value is
// loaded atomically; taken while the worker runs, the copy is not one
// consistent instant across routes.
type Snapshot struct {
	Recv, Send, Drop []uint64
	Status           [5]uint64
	Tap              uint64
}

// Snapshot copies out the current counter values.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Recv: make([]uint64, len(c.recv)),
		Send: make([]uint64, len(c.send)),
		Drop: make([]uint64, len(c.drop)),
		Tap:  c.tap.Load(),
	}
	for i := range c.recv {
		s.Recv[i] = c.recv[i].Load()
		s.Send[i] = c.send[i].Load()
		s.Drop[i] = c.drop[i].Load()
	}
	for i := range c.status {
		s.Status[i] = c.status[i].Load()
	}
	return s
}
