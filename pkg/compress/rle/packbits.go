// Package rle is a PackBits run-length coder for byte streams with long
// runs, such as the delta coded context tables of a container.
package rle

import (
	"bytes"
	"errors"
	"fmt"
)

var ErrTruncated = errors.New("rle: packed data truncated")

const maxRun = 128

// Encode packs data. Runs of two or more equal bytes become a count byte
// 1-n and the value; anything else is copied as literals of up to 128
// bytes, broken early where a run of three begins.
func Encode(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Grow(len(data) + len(data)/maxRun + 1)
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < maxRun && data[i+run] == data[i] {
			run++
		}
		if run > 1 {
			buf.WriteByte(byte(int8(1 - run)))
			buf.WriteByte(data[i])
			i += run
			continue
		}
		lit := 1
		for i+lit < len(data) && lit < maxRun {
			if j := i + lit; j+2 < len(data) && data[j] == data[j+1] && data[j] == data[j+2] {
				break
			}
			lit++
		}
		buf.WriteByte(byte(lit - 1))
		buf.Write(data[i : i+lit])
		i += lit
	}
	return buf.Bytes()
}

// Decode unpacks data, which must expand to exactly n bytes.
func Decode(data []byte, n int) ([]byte, error) {
	out := make([]byte, 0, min(n, 1<<20))
	for i := 0; i < len(data); {
		h := int8(data[i])
		i++
		switch {
		case h == -128:
			// no-op
		case h >= 0:
			count := int(h) + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("%w: literal of %d at offset %d", ErrTruncated, count, i)
			}
			out = append(out, data[i:i+count]...)
			i += count
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: run value at offset %d", ErrTruncated, i)
			}
			for k := 0; k < 1-int(h); k++ {
				out = append(out, data[i])
			}
			i++
		}
		if len(out) > n {
			return nil, fmt.Errorf("rle: unpacked %d bytes, want %d", len(out), n)
		}
	}
	if len(out) != n {
		return nil, fmt.Errorf("%w: unpacked %d of %d bytes", ErrTruncated, len(out), n)
	}
	return out, nil
}
