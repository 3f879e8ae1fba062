package nic

import "sync"

// Buffer is the software stand-in for the vendor NIC's zero-copy packet
// buffer (spec §4.7's get_buffer/free_buffer/populate_buffer). Workers treat
// it as an opaque handle: GetBuffer draws one, PopulateBuffer fills it,
// SendPacket consumes it (the worker must not call FreeBuffer after a
// successful send — see SendPacket's doc comment), and FreeBuffer returns an
// unsent one to the pool.
type Buffer struct {
	Data []byte
	Len  int
}

func newBuffer(size int) *Buffer {
	return &Buffer{Data: make([]byte, size)}
}

// bufferPool backs GetBuffer/FreeBuffer. A *Queue owns one pool sized to its
// configured ring frame size.
type bufferPool struct {
	pool *sync.Pool
}

func newBufferPool(frameSize int) *bufferPool {
	return &bufferPool{
		pool: &sync.Pool{
			New: func() any { return newBuffer(frameSize) },
		},
	}
}

func (p *bufferPool) get() *Buffer {
	b := p.pool.Get().(*Buffer) //nolint:errcheck // sync.Pool.New always returns *Buffer
	b.Len = 0
	return b
}

func (p *bufferPool) put(b *Buffer) {
	b.Len = 0
	p.pool.Put(b)
}
