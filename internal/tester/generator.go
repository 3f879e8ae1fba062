package tester

import (
	"log/slog"
	"net"

	"github.com/dantte-lp/udpswitch/internal/control"
	"github.com/dantte-lp/udpswitch/internal/nic"
	"github.com/dantte-lp/udpswitch/internal/pkt"
	"github.com/dantte-lp/udpswitch/internal/route"
	"github.com/dantte-lp/udpswitch/internal/worker"
)

// Route describes one route the tester drives: its slot and the switch's
// configured forwarding destination for it, which must loop back to this
// tester instance for the packet generator to observe its own traffic.
type Route struct {
	POA int
	Dst route.Endpoint
}

// Generator is one tester worker (spec §4.9, §5: "tester substitutes
// packet workers for forward workers"). It owns a slice of the route set
// and both sends seeded packets to the switch and receives the switch's
// forwarded replies on the same NIC queue.
type Generator struct {
	index    int
	queue    *nic.Queue
	self     route.Endpoint // this tester's own fast-path identity
	switchEP route.Endpoint // the switch's forward MAC/IP, port overridden per route
	routes   []Route
	limit    uint64
	counters *Counters
	logger   *slog.Logger
	handle   worker.Handle
}

// NewGenerator constructs a tester worker responsible for routes. For each
// received packet carrying sequence number n it sends the successor only
// while n < limit, so a route's traffic stops once n reaches limit.
func NewGenerator(index int, queue *nic.Queue, self, switchEP route.Endpoint, routes []Route, limit uint64, counters *Counters, logger *slog.Logger) *Generator {
	return &Generator{
		index:    index,
		queue:    queue,
		self:     self,
		switchEP: switchEP,
		routes:   routes,
		limit:    limit,
		counters: counters,
		logger:   logger.With(slog.String("component", "tester"), slog.Int("worker", index)),
	}
}

// Index returns the worker's cohort position (worker.Task).
func (g *Generator) Index() int { return g.index }

// BindHandle attaches the monitor handle this worker polls for shutdown.
func (g *Generator) BindHandle(h worker.Handle) { g.handle = h }

// Prime sends one packet per route to seed the pipeline (spec §4.9:
// "priming sends one packet per open route at startup"), using the same
// immediate retry-on-QUEUE_FULL loop the send path always uses rather than a
// fixed inter-send delay — there is no "pipeline fill" concern to pace
// against on a software NIC binding with per-packet allocation.
func (g *Generator) Prime() {
	for _, rt := range g.routes {
		g.sendOne(counterIndex(rt), rt, 0)
	}
}

// Run is the C9 packet worker loop: poll for a reply, validate and advance
// its sequence, and originate the next packet in the sequence.
func (g *Generator) Run() {
	g.handle.AckStart()

	for !g.handle.ShouldStop() {
		g.pollOnce()
	}

	g.queue.Unregister()
	g.handle.AckStop()
}

func (g *Generator) pollOnce() {
	buf := g.queue.GetBuffer()

	switch status := g.queue.GetPacket(buf); status {
	case nic.StatusNoPacket:
		g.queue.FreeBuffer(buf)
		return
	case nic.StatusOK:
		// fall through
	default:
		g.queue.FreeBuffer(buf)
		g.logger.Warn("nic status on receive", slog.String("status", status.String()))
		return
	}

	info := pkt.Parse(buf.Data[:buf.Len], g.self.MAC)
	if !info.IsUDPForMe {
		g.queue.FreeBuffer(buf)
		return
	}

	rt, ok := g.routeFor(info.POA)
	if !ok {
		g.queue.FreeBuffer(buf)
		return
	}

	n := readCounter(buf.Data[info.AllHeadersSize:buf.Len])
	g.queue.FreeBuffer(buf)

	idx := counterIndex(rt)
	next := g.counters.observe(idx, n)
	if n < g.limit {
		g.sendOne(idx, rt, next)
	}
}

func (g *Generator) routeFor(poa int) (Route, bool) {
	for _, rt := range g.routes {
		if rt.POA == poa {
			return rt, true
		}
	}
	return Route{}, false
}

// counterIndex maps a route to its position in the shared, globally-sized
// Counters block. Counters is allocated for the full route set (every
// tester worker shares one Counters, sized by the caller to the total
// route count), so the index must be the route's absolute slot position —
// not this worker's position within its own partition of routes — or
// multiple workers would collide on the same counter slots.
func counterIndex(rt Route) int {
	return rt.POA - route.PortOffset
}

// sendOne builds and transmits one packet for rt (at counters index idx)
// carrying sequence number n, retrying while the NIC queue reports
// QUEUE_FULL.
func (g *Generator) sendOne(idx int, rt Route, n uint64) {
	dst := g.switchEP
	dst.Port = rt.POA
	src := g.self
	src.Port = rt.POA

	frame := buildPacket(dst, src, n)

	buf := g.queue.GetBuffer()
	g.queue.PopulateBuffer(buf, frame)

	for {
		switch g.queue.SendPacket(buf) {
		case nic.StatusQueueFull:
			continue
		case nic.StatusOK:
			g.counters.sent[idx].Add(1)
		default:
			g.queue.FreeBuffer(buf)
		}
		return
	}
}

// Stop sends the shutdown sequence of spec §4.9: a port=-1 close message
// for every route, then a zero-length frame, over the control connection
// conn.
func Stop(conn net.Conn, routes []Route) error {
	for _, rt := range routes {
		msg := route.CloseMessage(rt.POA)
		body, err := msg.Encode()
		if err != nil {
			return err
		}
		if err := control.WriteFrame(conn, body); err != nil {
			return err
		}
	}
	return control.WriteShutdown(conn)
}
