// Package nic implements the NIC queue binding (C7, spec §4.7): the
// multi-queue input/output abstraction the packet plane drains and sends
// on. spec.md deliberately externalizes the vendor NETIO layer and permits
// binding to "any equivalent zero-copy multi-queue driver"; this binds to
// Linux AF_PACKET with PACKET_FANOUT as the hash-bucket classifier and a
// TUN/TAP device for the non-UDP-for-us spill path.
package nic

// StatusCode mirrors spec §4.7/§7's NIC status vocabulary: the packet-plane
// dispatches on exactly these outcomes from GetPacket and SendPacket.
type StatusCode int

const (
	// StatusOK: a packet was retrieved or sent successfully.
	StatusOK StatusCode = iota
	// StatusNoPacket: GetPacket found nothing waiting (normal, not an error).
	StatusNoPacket
	// StatusLinkDown: Register found the interface administratively or
	// physically down; the caller retries after a one-second delay.
	StatusLinkDown
	// StatusQueueFull: SendPacket's ring is full; the caller retries in
	// place until it is not.
	StatusQueueFull
	// StatusError: any other transient I/O error (log and continue on
	// GetPacket, count as drop and free on SendPacket).
	StatusError
)

// String renders the status the way the switch's shutdown counter dump
// (spec §7) summarizes the NIC status histogram.
func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoPacket:
		return "NOPKT"
	case StatusLinkDown:
		return "LINK_DOWN"
	case StatusQueueFull:
		return "QUEUE_FULL"
	default:
		return "ERROR"
	}
}
