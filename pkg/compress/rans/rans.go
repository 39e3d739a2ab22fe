package rans

import (
	"encoding/binary"
	"fmt"
)

// Encoder accumulates symbols in reverse decode order. A stream begins with
// the flushed 4-byte little-endian state followed by the renormalization
// bytes in the order the decoder consumes them.
type Encoder struct {
	cfg   Config
	state uint32
	out   []byte
}

// NewEncoder returns an encoder at the initial state.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg, state: cfg.LowerBound}
}

// Reset returns the encoder to the initial state, keeping its buffer.
func (e *Encoder) Reset() {
	e.state = e.cfg.LowerBound
	e.out = e.out[:0]
}

// Put codes one symbol. Symbols must be put last-to-first.
func (e *Encoder) Put(sym byte, t *FrequencyTable) error {
	freq := t.Freq(sym)
	if freq == 0 {
		return fmt.Errorf("%w: symbol %d", ErrModelViolation, sym)
	}
	xMax := ((e.cfg.LowerBound >> e.cfg.ScaleBits) << 8) * freq
	x := e.state
	for x >= xMax {
		e.out = append(e.out, byte(x))
		x >>= 8
	}
	e.state = (x/freq)<<e.cfg.ScaleBits + x%freq + t.Cum(sym)
	return nil
}

// Finish flushes the state and returns the stream. The encoder must be
// Reset before it is reused.
func (e *Encoder) Finish() []byte {
	res := make([]byte, 4+len(e.out))
	binary.LittleEndian.PutUint32(res, e.state)
	for i, b := range e.out {
		res[len(res)-1-i] = b
	}
	return res
}

// Decoder reads symbols from a stream produced by Encoder.
type Decoder struct {
	cfg   Config
	state uint32
	data  []byte
	pos   int
	count int
	// truncatedAt is the symbol index where input ran out, -1 if it did not.
	truncatedAt int
}

// NewDecoder reads the initial state of data.
func NewDecoder(cfg Config, data []byte) (*Decoder, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: %d byte header", ErrCorruptStream, len(data))
	}
	d := &Decoder{
		cfg:         cfg,
		state:       binary.LittleEndian.Uint32(data),
		data:        data,
		pos:         4,
		truncatedAt: -1,
	}
	if d.state < cfg.LowerBound || uint64(d.state) >= uint64(cfg.LowerBound)<<8 {
		return nil, fmt.Errorf("%w: initial state %#x out of range", ErrCorruptStream, d.state)
	}
	return d, nil
}

// Get decodes the next symbol. Running out of input does not stop the
// decoder; the remaining state is rebuilt from zero bytes and Finish
// reports the truncation.
func (d *Decoder) Get(t *FrequencyTable) (byte, error) {
	mask := d.cfg.Total() - 1
	slot := d.state & mask
	sym := t.Lookup(slot)
	x := t.Freq(sym)*(d.state>>d.cfg.ScaleBits) + slot - t.Cum(sym)
	for x < d.cfg.LowerBound {
		var b byte
		if d.pos < len(d.data) {
			b = d.data[d.pos]
			d.pos++
		} else if d.truncatedAt < 0 {
			d.truncatedAt = d.count
		}
		x = x<<8 | uint32(b)
	}
	d.state = x
	d.count++
	return sym, nil
}

// Finish verifies that the stream was consumed exactly and that the state
// returned to its initial value.
func (d *Decoder) Finish() error {
	switch {
	case d.truncatedAt >= 0:
		return fmt.Errorf("%w: truncated at symbol %d of %d", ErrCorruptStream, d.truncatedAt, d.count)
	case d.pos != len(d.data):
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, len(d.data)-d.pos)
	case d.state != d.cfg.LowerBound:
		return fmt.Errorf("%w: final state %#x", ErrCorruptStream, d.state)
	}
	return nil
}

// EncodeBlock codes symbols with a single table.
func EncodeBlock(cfg Config, t *FrequencyTable, symbols []byte) ([]byte, error) {
	e := NewEncoder(cfg)
	for i := len(symbols) - 1; i >= 0; i-- {
		if err := e.Put(symbols[i], t); err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
	}
	return e.Finish(), nil
}

// DecodeBlock decodes n symbols coded with a single table into dst.
func DecodeBlock(cfg Config, t *FrequencyTable, data []byte, n int, dst []byte) ([]byte, error) {
	d, err := NewDecoder(cfg, data)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		sym, err := d.Get(t)
		if err != nil {
			return nil, err
		}
		dst = append(dst, sym)
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return dst, nil
}
