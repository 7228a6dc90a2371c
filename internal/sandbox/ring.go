package sandbox

import "sync"

// ringBuffer keeps the last size bytes written to it. Stdout and stderr of
// one command share a buffer, so writes are serialized.
type ringBuffer struct {
	mu    sync.Mutex
	buf   []byte
	size  int
	start int
	full  bool
	total int64
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = 64 << 10
	}
	return &ringBuffer{buf: make([]byte, 0, size), size: size}
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	r.total += int64(n)
	if n >= r.size {
		r.buf = append(r.buf[:0], p[n-r.size:]...)
		r.start = 0
		r.full = true
		return n, nil
	}
	for len(p) > 0 {
		if !r.full {
			room := r.size - len(r.buf)
			k := min(room, len(p))
			r.buf = append(r.buf, p[:k]...)
			p = p[k:]
			if len(r.buf) == r.size {
				r.full = true
				r.start = 0
			}
			continue
		}
		k := copy(r.buf[r.start:], p)
		p = p[k:]
		r.start = (r.start + k) % r.size
	}
	return n, nil
}

// String returns the retained bytes in write order.
func (r *ringBuffer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return string(r.buf)
	}
	out := make([]byte, 0, r.size)
	out = append(out, r.buf[r.start:]...)
	out = append(out, r.buf[:r.start]...)
	return string(out)
}

// Truncated reports whether output was dropped.
func (r *ringBuffer) Truncated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total > int64(r.size)
}
