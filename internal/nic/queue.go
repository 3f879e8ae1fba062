package nic

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Stat is the shape of the NIC parameter-get block spec §4.7 calls out:
// per-queue receive/drop counters, independent of the worker's own
// per-route counters. Nothing in this package fills one in.
type Stat struct {
	Recv     uint64
	Overflow uint64
}

// QueueConfig mirrors spec §4.7's register parameters.
type QueueConfig struct {
	QueueID int
}

// Queue is one worker's NIC input/output queue (spec §4.7): an AF_PACKET
// raw socket joined to the owning Group's PACKET_FANOUT group, so the
// kernel's flow hash — not application code — decides which Queue a given
// 4-tuple lands on.
type Queue struct {
	group   *Group
	queueID int
	fd      int
	pool    *bufferPool
	mac     [6]byte

	overflow uint64
}

// Register opens and binds the queue's socket and joins it to the group's
// fanout (spec §4.7's register). Returns ErrLinkDown if the interface is
// not up; RegisterWithRetry (used by cmd/switch and cmd/tester) retries
// after a one-second delay per spec.
func (g *Group) Register(cfg QueueConfig) (*Queue, error) {
	up, err := g.linkUp()
	if err != nil {
		return nil, err
	}
	if !up {
		return nil, ErrLinkDown
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("nic: open AF_PACKET socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  g.ifIndex,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("nic: bind queue %d to %s: %w", cfg.QueueID, g.ifName, err)
	}

	fanoutID := (g.groupID << 16) | (unix.PACKET_FANOUT_HASH & 0xffff)
	if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_FANOUT, fanoutID); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("nic: join fanout group %d: %w", g.groupID, err)
	}

	mac, err := interfaceMAC(g.ifName)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	return &Queue{
		group:   g,
		queueID: cfg.QueueID,
		fd:      fd,
		pool:    newBufferPool(g.frameSize),
		mac:     mac,
	}, nil
}

// RegisterWithRetry calls Register, sleeping one second and retrying on
// ErrLinkDown, matching spec §4.7's register contract verbatim. It returns
// early if stop is closed.
func (g *Group) RegisterWithRetry(cfg QueueConfig, stop <-chan struct{}) (*Queue, error) {
	for {
		q, err := g.Register(cfg)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, ErrLinkDown) {
			return nil, err
		}
		select {
		case <-time.After(time.Second):
		case <-stop:
			return nil, err
		}
	}
}

// Unregister closes the queue's socket (spec §4.7's unregister), called by
// a worker on its own exit path.
func (q *Queue) Unregister() error {
	if err := unix.Close(q.fd); err != nil {
		return fmt.Errorf("nic: unregister queue %d: %w", q.queueID, err)
	}
	return nil
}

// GetBuffer draws a pooled packet buffer (spec §4.7's get_buffer).
func (q *Queue) GetBuffer() *Buffer {
	return q.pool.get()
}

// FreeBuffer returns an unsent buffer to the pool (spec §4.7's
// free_buffer). Must NOT be called on a buffer that was handed to a
// successful SendPacket — see SendPacket's ownership note.
func (q *Queue) FreeBuffer(b *Buffer) {
	q.pool.put(b)
}

// PopulateBuffer copies payload into b and records its length (spec §4.7's
// populate_buffer).
func (q *Queue) PopulateBuffer(b *Buffer, payload []byte) {
	n := copy(b.Data, payload)
	b.Len = n
}

// GetPacket performs one non-blocking receive (spec §4.4 step 1: "attempt
// one non-blocking packet fetch ... if no packet, yield once and
// continue"). On StatusOK, b.Len holds the received frame length.
func (q *Queue) GetPacket(b *Buffer) StatusCode {
	n, _, err := unix.Recvfrom(q.fd, b.Data, unix.MSG_DONTWAIT)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return StatusNoPacket
		}
		return StatusError
	}
	b.Len = n
	return StatusOK
}

// SendPacket transmits b (spec §4.7's send_packet). On StatusOK the queue
// has taken ownership of b and already returned it to the pool — the
// zero-copy contract of spec §4.4 step 6 ("on success ... do not free")
// translated to a pooled-buffer world: the caller must not call FreeBuffer
// itself. On StatusQueueFull the caller retries the same buffer in place
// (spec §4.7, §7); on StatusError the caller counts a drop and frees b.
func (q *Queue) SendPacket(b *Buffer) StatusCode {
	err := unix.Sendto(q.fd, b.Data[:b.Len], unix.MSG_DONTWAIT, &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  q.group.ifIndex,
	})
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.ENOBUFS) {
			return StatusQueueFull
		}
		return StatusError
	}
	q.pool.put(b)
	return StatusOK
}

// MAC returns the bound interface's hardware address (spec §4.7's
// parameter-get for the interface MAC).
func (q *Queue) MAC() [6]byte {
	return q.mac
}

// Overflow returns the queue's overflow counter (spec §4.7's OVERFLOW
// parameter). Nothing in this package increments it, so it always
// reports 0; kernel-side socket drops are not read back.
func (q *Queue) Overflow() uint64 {
	return q.overflow
}

func interfaceMAC(name string) ([6]byte, error) {
	var mac [6]byte
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return mac, fmt.Errorf("nic: resolve MAC for %q: %w", name, err)
	}
	copy(mac[:], ifi.HardwareAddr)
	return mac, nil
}
