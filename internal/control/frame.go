// Package control implements the control channel (C6, spec §4.6): a
// framed TCP server that parses JSON route commands and mutates the route
// table (internal/route). The wire format is a 4-byte little-endian length
// prefix followed by that many bytes of JSON — spec §4.6 explicitly calls
// out the original's host-endian framing as a portability bug and requires
// a fixed little-endian length for both peers.
package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxFrameSize bounds a single JSON frame; route command bodies are at
// most a couple hundred bytes, so this is generous headroom against a
// malformed length prefix rather than a tight protocol limit.
const maxFrameSize = 1 << 16

// ErrFrameTooLarge is returned by ReadFrame when a peer claims an
// implausibly large frame.
var ErrFrameTooLarge = errors.New("control: frame exceeds maximum size")

// shutdownSentinelLen is the length value a zero-length frame carries: the
// graceful-shutdown sentinel of spec §4.6.
const shutdownSentinelLen = 0

// ReadFrame reads one length-prefixed frame from r (spec §4.6). Short
// reads are handled by looping until the full frame is obtained
// (io.ReadFull); an EOF encountered mid-frame is returned wrapped as
// io.ErrUnexpectedEOF so the caller can treat it as a hard disconnect. A frame with length 0 returns
// (nil, nil) — the caller checks for this to recognize the shutdown
// sentinel rather than treating an empty slice as an error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("control: read frame length: %w", err)
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == shutdownSentinelLen {
		return nil, nil
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("control: frame length %d: %w", length, ErrFrameTooLarge)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("control: read frame body (%d bytes): %w", length, err)
	}

	return body, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body))) //nolint:gosec // body is always well under 1<<32

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("control: write frame length: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("control: write frame body: %w", err)
	}
	return nil
}

// WriteShutdown writes the zero-length graceful-shutdown sentinel frame
// (spec §4.6, §4.9's tester stop sequence, §8 scenario S6).
func WriteShutdown(w io.Writer) error {
	return WriteFrame(w, nil)
}
