package nic

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// tapReadCap is the maximum single read size from the TAP device (spec
// §4.5: TAP reads are capped at 8192 bytes).
const tapReadCap = 8192

// TAPHeaderLen is the Ethernet header length of the frames the TAP device
// carries. No code in this module reads it: Buffer has no header-length
// field, so re-injected frames are not stamped with it.
const TAPHeaderLen = 14

// TAP is a Linux TUN/TAP device opened in L2 (tap), no-packet-info mode,
// matching spec §4.5's "interface type L2, no packet-info prefix": open
// /dev/net/tun, set IFF_TAP|IFF_NO_PI via an ifreq, then TUNSETIFF.
type TAP struct {
	fd   int
	name string
}

// OpenTAP creates or attaches to the named TAP device.
func OpenTAP(name string) (*TAP, error) {
	fd, err := unix.Open("/dev/net/tun", unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("nic: open /dev/net/tun: %w", err)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("nic: build ifreq for %q: %w", name, err)
	}
	ifr.SetUint16(unix.IFF_TAP | unix.IFF_NO_PI)

	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("nic: TUNSETIFF %q: %w", name, err)
	}

	return &TAP{fd: fd, name: name}, nil
}

// Name returns the TAP device's interface name.
func (t *TAP) Name() string {
	return t.name
}

// ReadCap is the maximum bytes a single Read call returns, per spec §4.5.
func (t *TAP) ReadCap() int {
	return tapReadCap
}

// Read performs a blocking read of one frame from the TAP device — the
// suspension point spec §5 grants the TAP worker. EOF is reported as an
// error the caller treats as its self-alert trigger (spec §4.5, §7).
func (t *TAP) Read(buf []byte) (int, error) {
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		return 0, fmt.Errorf("nic: read TAP %q: %w", t.name, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("nic: TAP %q: %w", t.name, ErrTAPClosed)
	}
	return n, nil
}

// Write sends one L2 frame out the TAP device.
func (t *TAP) Write(buf []byte) (int, error) {
	n, err := unix.Write(t.fd, buf)
	if err != nil {
		return 0, fmt.Errorf("nic: write TAP %q: %w", t.name, err)
	}
	return n, nil
}

// Close releases the TAP file descriptor.
func (t *TAP) Close() error {
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("nic: close TAP %q: %w", t.name, err)
	}
	return nil
}
