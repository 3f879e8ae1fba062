package control_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/dantte-lp/udpswitch/internal/control"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	body := []byte(`{"from":17,"port":6000,"ip":"10.0.0.1","mac":"00:11:22:33:44:55"}`)

	if err := control.WriteFrame(&buf, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := control.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("ReadFrame = %q, want %q", got, body)
	}
}

func TestReadFrameShutdownSentinel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := control.WriteShutdown(&buf); err != nil {
		t.Fatalf("WriteShutdown: %v", err)
	}

	body, err := control.ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if body != nil {
		t.Fatalf("ReadFrame after shutdown sentinel = %q, want nil", body)
	}
}

func TestReadFrameShortReadLoopsUntilComplete(t *testing.T) {
	t.Parallel()

	var full bytes.Buffer
	body := []byte(`{"from":1,"port":-1,"ip":"","mac":""}`)
	if err := control.WriteFrame(&full, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	// Split the encoded frame across several short reads to exercise
	// io.ReadFull's internal retry loop rather than a single Read.
	r := &chunkyReader{data: full.Bytes(), chunk: 3}

	got, err := control.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("ReadFrame = %q, want %q", got, body)
	}
}

func TestReadFrameEOFMidFrameIsHardDisconnect(t *testing.T) {
	t.Parallel()

	var full bytes.Buffer
	if err := control.WriteFrame(&full, []byte(`{"from":1,"port":-1,"ip":"","mac":""}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	truncated := full.Bytes()[:len(full.Bytes())-5]
	_, err := control.ReadFrame(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("ReadFrame on truncated frame: want error, got nil")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadFrame error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0x7f}) // huge little-endian length

	_, err := control.ReadFrame(&buf)
	if !errors.Is(err, control.ErrFrameTooLarge) {
		t.Fatalf("ReadFrame error = %v, want ErrFrameTooLarge", err)
	}
}

// chunkyReader returns at most `chunk` bytes per Read call, forcing callers
// relying on io.ReadFull to issue multiple reads.
type chunkyReader struct {
	data  []byte
	chunk int
}

func (r *chunkyReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}
