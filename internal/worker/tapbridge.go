package worker

import (
	"errors"
	"log/slog"

	"github.com/dantte-lp/udpswitch/internal/nic"
)

// TAPBridge is the single TAP worker (C5, spec §4.5): it reads frames off
// the kernel TAP device and re-injects them on a NIC send queue, treating
// itself as route index 0 for counter purposes ("this worker has a single
// logical route").
type TAPBridge struct {
	index    int
	tapDev   TAPReader
	sendTo   Queue
	counters *Counters
	logger   *slog.Logger
	handle   Handle
}

// NewTAPBridge constructs the TAP bridge worker, reading from tapDev and
// re-injecting onto sendQueue.
func NewTAPBridge(index int, tapDev TAPReader, sendQueue Queue, counters *Counters, logger *slog.Logger) *TAPBridge {
	return &TAPBridge{
		index:    index,
		tapDev:   tapDev,
		sendTo:   sendQueue,
		counters: counters,
		logger:   logger.With(slog.String("component", "tap-bridge")),
	}
}

// Index returns the worker's cohort position.
func (b *TAPBridge) Index() int { return b.index }

// BindHandle attaches the monitor handle this worker polls for shutdown.
func (b *TAPBridge) BindHandle(h Handle) { b.handle = h }

// Run is the C5 TAP bridge loop. Its only suspension point is the TAP
// read() call itself (spec §5); on EOF it self-alerts and exits, matching
// spec §4.5 and §7's "TAP read error: on EOF -> self-alert".
func (b *TAPBridge) Run() {
	b.handle.AckStart()

	readBuf := make([]byte, b.tapDev.ReadCap())

	for {
		n, err := b.tapDev.Read(readBuf)
		if err != nil {
			if errors.Is(err, nic.ErrTAPClosed) {
				break
			}
			b.logger.Warn("tap read error", slog.String("error", err.Error()))
			continue
		}

		b.counters.RecordRecv(0)
		b.forward(readBuf[:n])

		if b.handle.ShouldStop() {
			break
		}
	}

	b.handle.AckStop()
}

// forward acquires a send buffer, copies the frame into it (setting only
// the buffer's length; nic.Buffer carries no separate L2 header length),
// and retries the send while the NIC queue reports QUEUE_FULL, recording the
// frame against this worker's slot-0 send/drop counters (spec §4.5: "this
// worker has a single logical route").
func (b *TAPBridge) forward(frame []byte) {
	buf := b.sendTo.GetBuffer()
	b.sendTo.PopulateBuffer(buf, frame)

	for {
		status := b.sendTo.SendPacket(buf)
		switch status {
		case nic.StatusQueueFull:
			continue
		case nic.StatusOK:
			b.counters.RecordSend(0)
		default:
			b.counters.RecordDrop(0)
			b.sendTo.FreeBuffer(buf)
		}
		return
	}
}
