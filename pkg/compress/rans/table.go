// Package rans implements a byte-oriented range asymmetric numeral system
// coder driven by static frequency tables.
package rans

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"
)

var (
	ErrInvalidConfig  = errors.New("rans: invalid coder configuration")
	ErrInvalidTable   = errors.New("rans: invalid frequency table")
	ErrModelViolation = errors.New("rans: symbol has zero frequency")
	ErrCorruptStream  = errors.New("rans: corrupt stream")
)

// Config holds the numeric parameters shared by an encoder, a decoder and
// the tables they use. It is immutable once built.
type Config struct {
	// ScaleBits sets the table total to 1<<ScaleBits.
	ScaleBits uint8
	// LowerBound is the bottom of the normalized state interval [L, L<<8).
	LowerBound uint32
}

// DefaultConfig matches the classic byte-wise rANS parameters.
func DefaultConfig() Config {
	return Config{ScaleBits: 14, LowerBound: 1 << 23}
}

// Total is the sum every frequency table must reach.
func (c Config) Total() uint32 { return 1 << c.ScaleBits }

// Validate checks the parameters against an alphabet size.
func (c Config) Validate(alphabet int) error {
	if c.ScaleBits == 0 || c.ScaleBits > 16 {
		return fmt.Errorf("%w: scale bits %d outside [1,16]", ErrInvalidConfig, c.ScaleBits)
	}
	if bits.OnesCount32(c.LowerBound) != 1 || c.LowerBound > 1<<23 || c.LowerBound < c.Total() {
		return fmt.Errorf("%w: lower bound %#x must be a power of two in [total, 1<<23]", ErrInvalidConfig, c.LowerBound)
	}
	if alphabet < 1 || alphabet > 256 {
		return fmt.Errorf("%w: alphabet of %d symbols", ErrInvalidConfig, alphabet)
	}
	if uint32(alphabet) > c.Total() {
		return fmt.Errorf("%w: total %d below alphabet of %d symbols", ErrInvalidConfig, c.Total(), alphabet)
	}
	return nil
}

// FrequencyTable maps each symbol to a [cum, cum+freq) slot range of the total.
type FrequencyTable struct {
	scaleBits uint8
	freq      []uint32
	cum       []uint32
}

// NewTable validates freqs and builds the cumulative ranges. The
// frequencies must sum to exactly c.Total().
func (c Config) NewTable(freqs []uint32) (*FrequencyTable, error) {
	if len(freqs) == 0 || len(freqs) > 256 {
		return nil, fmt.Errorf("%w: %d symbols", ErrInvalidTable, len(freqs))
	}
	t := &FrequencyTable{
		scaleBits: c.ScaleBits,
		freq:      append([]uint32(nil), freqs...),
		cum:       make([]uint32, len(freqs)+1),
	}
	var sum uint64
	for i, f := range freqs {
		t.cum[i] = uint32(sum)
		sum += uint64(f)
	}
	if sum != uint64(c.Total()) {
		return nil, fmt.Errorf("%w: frequencies sum to %d, want %d", ErrInvalidTable, sum, c.Total())
	}
	t.cum[len(freqs)] = uint32(sum)
	return t, nil
}

// Len is the alphabet size of the table.
func (t *FrequencyTable) Len() int { return len(t.freq) }

// Freq returns the frequency of sym, zero when sym is outside the alphabet.
func (t *FrequencyTable) Freq(sym byte) uint32 {
	if int(sym) >= len(t.freq) {
		return 0
	}
	return t.freq[sym]
}

// Cum returns the first slot owned by sym.
func (t *FrequencyTable) Cum(sym byte) uint32 { return t.cum[sym] }

// Freqs returns a copy of the frequencies.
func (t *FrequencyTable) Freqs() []uint32 { return append([]uint32(nil), t.freq...) }

// Lookup finds the symbol owning slot, which must be below the table total.
// Zero-frequency symbols own no slot and are never returned.
func (t *FrequencyTable) Lookup(slot uint32) byte {
	return byte(sort.Search(len(t.freq), func(i int) bool { return t.cum[i+1] > slot }))
}

// Cost is the number of bits needed to code sym with this table.
func (t *FrequencyTable) Cost(sym byte) float64 {
	f := t.Freq(sym)
	if f == 0 {
		return math.Inf(1)
	}
	return float64(t.scaleBits) - math.Log2(float64(f))
}
