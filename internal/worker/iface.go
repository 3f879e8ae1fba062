package worker

import "github.com/dantte-lp/udpswitch/internal/nic"

// Queue is the subset of *nic.Queue a ForwardWorker or TAPBridge needs to
// drain and send on. Extracting it as an interface lets tests substitute a
// fake queue instead of opening a real AF_PACKET socket, the same way
// internal/netio's PacketConn separates the wire protocol from the raw
// socket underneath it. *nic.Queue satisfies this implicitly.
type Queue interface {
	GetBuffer() *nic.Buffer
	PopulateBuffer(b *nic.Buffer, payload []byte)
	GetPacket(b *nic.Buffer) nic.StatusCode
	SendPacket(b *nic.Buffer) nic.StatusCode
	FreeBuffer(b *nic.Buffer)
	Unregister() error
}

// TAPReader is the subset of *nic.TAP the TAP bridge reads from.
type TAPReader interface {
	Read(buf []byte) (int, error)
	ReadCap() int
}

// TAPWriter is the subset of *nic.TAP a ForwardWorker spills non-UDP-for-us
// frames to.
type TAPWriter interface {
	Write(buf []byte) (int, error)
}
