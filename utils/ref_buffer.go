package utils

import (
	"sync"
)

const (
	defaultBufSize = 4 * 1024
)

var (
	refBufPool = sync.Pool{
		New: func() any {
			return &Buffer{
				Buffer: make([]byte, 0, defaultBufSize),
			}
		},
	}
)

// GetBuffer fetches a pooled buffer resized to size bytes. Contents are not
// zeroed; callers that hand the buffer to a parser must clear the slack
// themselves.
func GetBuffer(size int) *Buffer {
	buf, _ := refBufPool.Get().(*Buffer)
	if cap(buf.Buffer) < size {
		buf.Buffer = make([]byte, size)
	}
	buf.Buffer = buf.Buffer[:size]
	return buf
}

func PutBuffer(b *Buffer) {
	refBufPool.Put(b)
}

type Buffer struct {
	Buffer []byte
}

// Grow extends the buffer to at least size bytes, reallocating only when the
// capacity is exceeded, and returns the resized slice.
func (b *Buffer) Grow(size int) []byte {
	if cap(b.Buffer) < size {
		grown := make([]byte, size)
		copy(grown, b.Buffer)
		b.Buffer = grown
	}
	b.Buffer = b.Buffer[:size]
	return b.Buffer
}
