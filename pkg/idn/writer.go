package idn

import (
	"io"
	"sync/atomic"
)

// CountingWriter tracks the bytes written through it.
type CountingWriter struct {
	Count  atomic.Int64
	Writer io.Writer
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	c.Count.Add(int64(n))
	return n, err
}
