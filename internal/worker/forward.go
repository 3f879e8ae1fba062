package worker

import (
	"log/slog"
	"runtime"

	"github.com/dantte-lp/udpswitch/internal/nic"
	"github.com/dantte-lp/udpswitch/internal/pkt"
	"github.com/dantte-lp/udpswitch/internal/route"
)

// ForwardWorker is one per-core forward loop (C4, spec §4.4): it drains a
// single NIC queue, classifies each packet, and either rewrites and
// forwards it, writes it to the TAP device, or drops it.
//
// Because our AF_PACKET binding's GetPacket only ever reports StatusOK (a
// frame was read) or an error status — unlike the original NETIO hardware,
// which could also hand back a buffer flagged with an in-band status such
// as a bad checksum — spec §4.4 steps 2 and 5's separate "status != OK"
// check collapses here into the single dispatch on GetPacket's result.
type ForwardWorker struct {
	index      int
	queue      Queue
	tapQueue   TAPWriter
	routes     *route.Table
	forwardMAC [6]byte
	counters   *Counters
	logger     *slog.Logger
	handle     Handle
}

// NewForwardWorker constructs a forward worker bound to queue, reading
// routes from routes and spilling non-UDP-for-us frames to tapDev.
func NewForwardWorker(index int, queue Queue, tapDev TAPWriter, routes *route.Table, forwardMAC [6]byte, counters *Counters, logger *slog.Logger) *ForwardWorker {
	return &ForwardWorker{
		index:      index,
		queue:      queue,
		tapQueue:   tapDev,
		routes:     routes,
		forwardMAC: forwardMAC,
		counters:   counters,
		logger:     logger.With(slog.Int("worker", index)),
	}
}

// Index returns the worker's cohort position.
func (w *ForwardWorker) Index() int { return w.index }

// BindHandle attaches the monitor handle this worker polls for shutdown.
// Called once by the cohort builder before Start.
func (w *ForwardWorker) BindHandle(h Handle) { w.handle = h }

// Run is the C4 forward loop. It returns only after observing its own
// alert flag.
func (w *ForwardWorker) Run() {
	w.handle.AckStart()

	for !w.handle.ShouldStop() {
		w.pollOnce()
	}

	if err := w.queue.Unregister(); err != nil {
		w.logger.Error("unregister queue failed", slog.String("error", err.Error()))
	}
	w.handle.AckStop()
}

func (w *ForwardWorker) pollOnce() {
	buf := w.queue.GetBuffer()
	status := w.queue.GetPacket(buf)
	w.counters.RecordStatus(status)

	switch status {
	case nic.StatusNoPacket:
		w.queue.FreeBuffer(buf)
		runtime.Gosched()
		return
	case nic.StatusOK:
	default:
		w.queue.FreeBuffer(buf)
		w.logger.Warn("nic get_packet error", slog.String("status", status.String()))
		return
	}

	info := pkt.Parse(buf.Data[:buf.Len], w.forwardMAC)

	if !info.IsUDPForMe {
		if _, err := w.tapQueue.Write(buf.Data[:buf.Len]); err != nil {
			w.logger.Warn("tap write failed", slog.String("error", err.Error()))
		}
		w.counters.RecordTap()
		w.queue.FreeBuffer(buf)
		return
	}

	entry := w.routes.Lookup(info.POA)
	if entry.Index < 0 {
		w.logger.Error("route lookup returned no slot for poa", slog.Int("poa", info.POA))
		w.queue.FreeBuffer(buf)
		return
	}

	w.counters.RecordRecv(entry.Index)

	if !entry.Open {
		w.counters.RecordDrop(entry.Index)
		w.queue.FreeBuffer(buf)
		return
	}

	pkt.Rewrite(buf.Data[:buf.Len], info, entry.Dst)

	for {
		sendStatus := w.queue.SendPacket(buf)
		switch sendStatus {
		case nic.StatusQueueFull:
			continue
		case nic.StatusOK:
			w.counters.RecordSend(entry.Index)
		default:
			w.counters.RecordDrop(entry.Index)
			w.queue.FreeBuffer(buf)
		}
		return
	}
}
