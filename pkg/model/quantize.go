package model

import (
	"errors"
	"fmt"
	"math"
)

var ErrEmptyDistribution = errors.New("model: distribution has no mass")

// Quantize turns a distribution into integer frequencies summing to total.
// Cumulative probabilities are scaled and rounded, then every symbol left at
// zero is raised to one and the deficit is taken round-robin from symbols
// above one. A distribution with a single observed symbol is kept exact:
// that symbol gets the whole total and the rest stay at zero.
func Quantize(p []float64, total uint32) ([]uint32, error) {
	n := len(p)
	if n == 0 {
		return nil, ErrEmptyDistribution
	}
	if uint64(n) > uint64(total) {
		return nil, fmt.Errorf("model: total %d below %d symbols", total, n)
	}
	var sum float64
	observed := 0
	for _, v := range p {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("model: invalid probability %v", v)
		}
		sum += v
		if v > 0 {
			observed++
		}
	}
	if sum == 0 {
		return nil, ErrEmptyDistribution
	}

	cum := make([]uint32, n)
	var acc float64
	for i, v := range p {
		cum[i] = uint32(math.Round(acc))
		acc += v / sum * float64(total)
	}
	freq := make([]uint32, n)
	for i := 0; i < n-1; i++ {
		freq[i] = cum[i+1] - cum[i]
	}
	freq[n-1] = total - cum[n-1]

	deficit := 0
	for i, f := range freq {
		if f == 0 && (observed > 1 || p[i] > 0) {
			freq[i] = 1
			deficit++
		}
	}
	for i := 0; deficit > 0; i = (i + 1) % n {
		if freq[i] > 1 {
			freq[i]--
			deficit--
		}
	}
	return freq, nil
}

// CumFreqs returns the running sums of freq starting at zero.
func CumFreqs(freq []uint32) []uint32 {
	out := make([]uint32, len(freq))
	var acc uint32
	for i, f := range freq {
		out[i] = acc
		acc += f
	}
	return out
}

// TableCost is the bits needed to code the counts of h with integer
// frequencies freq summing to total.
func TableCost(h *Histogram, freq []uint32, total uint32) float64 {
	var bits float64
	for s, c := range h.Counts {
		if c == 0 {
			continue
		}
		if freq[s] == 0 {
			return math.Inf(1)
		}
		bits += float64(c) * (math.Log2(float64(total)) - math.Log2(float64(freq[s])))
	}
	return bits
}
