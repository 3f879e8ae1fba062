// Package pkt implements the header parser (C2) and checksum rewriter (C3)
// of spec §4.2-§4.3: classifying Ethernet/IPv4/UDP frames by destination
// port and rewriting their destination with RFC 1624 incremental checksum
// updates.
package pkt

import "encoding/binary"

// EthHeaderLen is the Ethernet header length in bytes (dst MAC, src MAC,
// EtherType).
const EthHeaderLen = 14

// minIPHeaderLen is the minimum IPv4 header length (no options).
const minIPHeaderLen = 20

// udpHeaderLen is the fixed UDP header length.
const udpHeaderLen = 8

// minL3Len is the minimum bytes needed past the Ethernet header for a
// packet to plausibly be UDP-for-us (spec §4.2 step 2: "L3 length > 28").
const minL3Len = minIPHeaderLen + udpHeaderLen

const (
	ipVersionOff   = 0
	ipProtoOff     = 9
	ipProtoUDP     = 0x11
	ipTotalLenOff  = 2
	ipChecksumOff  = 10
	ipDstOff       = 16
	udpDstPortOff  = 2
	udpLengthOff   = 4
	udpChecksumOff = 6
)

// Info is the ephemeral, per-packet classification result of the header
// parser (spec §3's PacketInfo, minus the NIC-owned status/buffer fields
// which the caller tracks separately).
type Info struct {
	// IsUDPForMe reports whether the frame is an IPv4/UDP datagram
	// addressed (at L2) to our forwarding MAC.
	IsUDPForMe bool

	// POA is the UDP destination port ("port of arrival"). Only valid
	// when IsUDPForMe.
	POA int

	// IPHeaderSize is the IPv4 header length in bytes, computed from the
	// IHL nibble. 20 when the frame is not UDP-for-us (spec §4.2 step 4).
	IPHeaderSize int

	// AllHeadersSize is EthHeaderLen + IPHeaderSize + udpHeaderLen for a
	// UDP-for-us frame, or just EthHeaderLen otherwise.
	AllHeadersSize int

	// L2Len is the total frame length as received.
	L2Len int
}

// Parse classifies the Ethernet frame in l2 (spec §4.2). forwardMAC is this
// switch's own MAC address on the fast path; a frame is "UDP for me" only
// if its destination MAC matches.
//
// L3 is assumed to immediately follow the Ethernet header, i.e. L3-L2 ==
// EthHeaderLen: the software NIC binding in internal/nic always delivers
// whole, contiguous frames, so there is no separate L3 pointer to take from
// NIC metadata the way a zero-copy hardware queue would supply one.
func Parse(l2 []byte, forwardMAC [6]byte) Info {
	info := Info{
		IPHeaderSize: minIPHeaderLen,
		L2Len:        len(l2),
	}

	if !isUDPForMe(l2, forwardMAC) {
		info.AllHeadersSize = EthHeaderLen
		return info
	}

	l3 := l2[EthHeaderLen:]
	ipHdrSize := int(l3[ipVersionOff]&0x0f) * 4

	info.IsUDPForMe = true
	info.IPHeaderSize = ipHdrSize
	info.AllHeadersSize = EthHeaderLen + ipHdrSize + udpHeaderLen
	info.POA = int(binary.BigEndian.Uint16(l3[ipHdrSize+udpDstPortOff:]))

	return info
}

// isUDPForMe implements spec §4.2 step 2's four-part test.
func isUDPForMe(l2 []byte, forwardMAC [6]byte) bool {
	if len(l2) < EthHeaderLen {
		return false
	}

	l3 := l2[EthHeaderLen:]
	if len(l3) <= minL3Len {
		return false
	}

	if l3[ipVersionOff]>>4 != 4 {
		return false
	}

	if l3[ipProtoOff] != ipProtoUDP {
		return false
	}

	for i := 0; i < 6; i++ {
		if l2[i] != forwardMAC[i] {
			return false
		}
	}

	return true
}
