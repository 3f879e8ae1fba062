// Package tester implements the companion tester (C9, spec §4.9): a
// packet generator that drives the switch with route commands over the
// control channel and validates forwarding by sending/receiving a
// numbered UDP traffic pattern directly on the same NIC queue abstraction
// the switch's forward workers use (spec §5: "tester substitutes packet
// workers for forward workers").
package tester

import (
	"encoding/binary"

	"github.com/dantte-lp/udpswitch/internal/pkt"
	"github.com/dantte-lp/udpswitch/internal/route"
)

// PayloadSize is the tester's fixed UDP payload length: 1316 bytes of a
// repeated 8-byte counter (spec §6).
const PayloadSize = 1316

// FrameSize is the total Ethernet frame length for a tester packet: 14
// (L2) + 20 (IPv4, no options) + 8 (UDP) + 1316 (spec §6).
const FrameSize = pkt.EthHeaderLen + 20 + 8 + PayloadSize

const (
	ipHeaderLen  = 20
	udpHeaderLen = 8
	ipProtoUDP   = 0x11
	etherTypeIP4 = 0x0800
	ipTTL        = 0x3f
)

// buildPacket renders a tester packet addressed from src to dst, carrying
// sequence number n repeated through the payload. dst.Port and src.Port
// are both set by the caller to the route's port of arrival: a
// self-directed loop where the switch reclassifies the packet by poa and
// rewrites it onward to the route's configured destination.
func buildPacket(dst, src route.Endpoint, n uint64) []byte {
	buf := make([]byte, FrameSize)

	copy(buf[0:6], dst.MAC[:])
	copy(buf[6:12], src.MAC[:])
	binary.BigEndian.PutUint16(buf[12:14], etherTypeIP4)

	ip := buf[pkt.EthHeaderLen:]
	ip[0] = 0x45 // version 4, IHL 5
	ip[1] = 0
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipHeaderLen+udpHeaderLen+PayloadSize))
	binary.BigEndian.PutUint16(ip[4:6], 0) // identification
	ip[6] = 0x40                           // don't-fragment
	ip[7] = 0
	ip[8] = ipTTL
	ip[9] = ipProtoUDP
	binary.BigEndian.PutUint16(ip[10:12], 0) // checksum, filled below
	copy(ip[12:16], src.IP[:])
	copy(ip[16:20], dst.IP[:])

	udp := ip[ipHeaderLen:]
	binary.BigEndian.PutUint16(udp[0:2], uint16(src.Port)) //nolint:gosec // ports are validated < 65536
	binary.BigEndian.PutUint16(udp[2:4], uint16(dst.Port)) //nolint:gosec
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpHeaderLen+PayloadSize))
	binary.BigEndian.PutUint16(udp[6:8], 0) // checksum, filled below

	fillCounter(udp[udpHeaderLen:], n)

	udpChecksum := pkt.VerifyChecksum(udpPseudoHeader(src.IP, dst.IP, udp))
	if udpChecksum == 0 {
		udpChecksum = 0xffff
	}
	binary.BigEndian.PutUint16(udp[6:8], udpChecksum)

	binary.BigEndian.PutUint16(ip[10:12], pkt.VerifyChecksum(ip[:ipHeaderLen]))

	return buf
}

// fillCounter writes n, repeated as 8 little-endian bytes, through buf.
func fillCounter(buf []byte, n uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	for i := range buf {
		buf[i] = b[i%8]
	}
}

// readCounter is fillCounter's inverse: it recovers n from a received
// packet's payload.
func readCounter(buf []byte) uint64 {
	var b [8]byte
	copy(b[:], buf[:8])
	return binary.LittleEndian.Uint64(b[:])
}

// udpPseudoHeader builds the IPv4 pseudo-header + UDP segment used for the
// UDP checksum computation (RFC 768).
func udpPseudoHeader(src, dst [4]byte, udp []byte) []byte {
	out := make([]byte, 12+len(udp))
	copy(out[0:4], src[:])
	copy(out[4:8], dst[:])
	out[8] = 0
	out[9] = ipProtoUDP
	binary.BigEndian.PutUint16(out[10:12], uint16(len(udp)))
	copy(out[12:], udp)
	return out
}
