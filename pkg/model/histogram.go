// Package model estimates per-context symbol statistics and turns
// probability distributions into integer frequency tables.
package model

import (
	"math"
	"slices"

	"github.com/exascience/pargo/parallel"
)

// parallelThreshold is the input size below which estimation stays on one goroutine.
const parallelThreshold = 1 << 16

// Histogram counts the symbols seen in one context.
type Histogram struct {
	Counts []uint64
	Total  uint64
}

func newHistogram(alphabet int) *Histogram {
	return &Histogram{Counts: make([]uint64, alphabet)}
}

// Add merges o into h.
func (h *Histogram) Add(o *Histogram) {
	for i, c := range o.Counts {
		h.Counts[i] += c
	}
	h.Total += o.Total
}

// Distribution returns the normalized symbol probabilities.
func (h *Histogram) Distribution() []float64 {
	p := make([]float64, len(h.Counts))
	if h.Total == 0 {
		return p
	}
	for i, c := range h.Counts {
		p[i] = float64(c) / float64(h.Total)
	}
	return p
}

// Entropy is the empirical entropy of the context in bits per symbol.
func (h *Histogram) Entropy() float64 {
	return Entropy(h.Distribution())
}

// Histograms is the raw context model: one histogram per observed context.
type Histograms struct {
	Alphabet  int
	ByContext map[uint32]*Histogram
	Symbols   uint64
}

// NewHistograms returns an empty model over an alphabet.
func NewHistograms(alphabet int) *Histograms {
	return &Histograms{Alphabet: alphabet, ByContext: map[uint32]*Histogram{}}
}

// Observe counts one symbol in a context.
func (hs *Histograms) Observe(ctx uint32, sym byte) {
	h, ok := hs.ByContext[ctx]
	if !ok {
		h = newHistogram(hs.Alphabet)
		hs.ByContext[ctx] = h
	}
	h.Counts[sym]++
	h.Total++
	hs.Symbols++
}

// Merge adds every histogram of o into hs.
func (hs *Histograms) Merge(o *Histograms) {
	for ctx, oh := range o.ByContext {
		h, ok := hs.ByContext[ctx]
		if !ok {
			h = newHistogram(hs.Alphabet)
			hs.ByContext[ctx] = h
		}
		h.Add(oh)
	}
	hs.Symbols += o.Symbols
}

// Len is the number of observed contexts.
func (hs *Histograms) Len() int { return len(hs.ByContext) }

// Contexts returns the observed context identifiers in ascending order.
func (hs *Histograms) Contexts() []uint32 {
	out := make([]uint32, 0, len(hs.ByContext))
	for ctx := range hs.ByContext {
		out = append(out, ctx)
	}
	slices.Sort(out)
	return out
}

// Rate is the cost in bits per symbol of coding every context with its own
// exact distribution, i.e. the conditional entropy of the stream.
func (hs *Histograms) Rate() float64 {
	if hs.Symbols == 0 {
		return 0
	}
	var bits float64
	for _, h := range hs.ByContext {
		bits += float64(h.Total) * h.Entropy()
	}
	return bits / float64(hs.Symbols)
}

// Marginal sums every context into one histogram.
func (hs *Histograms) Marginal() *Histogram {
	m := newHistogram(hs.Alphabet)
	for _, h := range hs.ByContext {
		m.Add(h)
	}
	return m
}

// Estimate counts symbols[i] under contexts[i]. Large inputs are split into
// ranges counted in parallel and merged; the result does not depend on how
// the input was split.
func Estimate(contexts []uint32, symbols []byte, alphabet int) *Histograms {
	n := min(len(contexts), len(symbols))
	count := func(low, high int) *Histograms {
		hs := NewHistograms(alphabet)
		for i := low; i < high; i++ {
			hs.Observe(contexts[i], symbols[i])
		}
		return hs
	}
	if n < parallelThreshold {
		return count(0, n)
	}
	res := parallel.RangeReduce(0, n, 0,
		func(low, high int) interface{} { return count(low, high) },
		func(x, y interface{}) interface{} {
			l, r := x.(*Histograms), y.(*Histograms)
			if l.Len() < r.Len() {
				l, r = r, l
			}
			l.Merge(r)
			return l
		})
	return res.(*Histograms)
}

// Entropy of a distribution in bits. Probabilities under 1e-6 are ignored.
func Entropy(p []float64) float64 {
	var h float64
	for _, v := range p {
		if v >= 1e-6 {
			h -= v * math.Log2(v)
		}
	}
	return h
}

// CrossEntropy is the expected bits per symbol of coding p with q. Values
// of q below floor are raised to floor.
func CrossEntropy(p, q []float64, floor float64) float64 {
	var h float64
	for i, v := range p {
		if v == 0 {
			continue
		}
		h -= v * math.Log2(max(q[i], floor))
	}
	return h
}
