// Package binning groups contexts with similar symbol distributions into a
// bounded number of bins, each coded with one shared frequency table.
//
// Binning is a weighted k-means over symbol distributions. The distance from
// a context to a bin is the cross-entropy of coding the context's
// distribution with the bin's centroid, so the objective is the number of
// bits the stream costs under the binned model. Centroids are seeded
// deterministically (heaviest context first, then weighted farthest-first),
// so the same input always produces the same bins.
package binning

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/exascience/pargo/parallel"
	"github.com/jpfielding/idencomp.go/pkg/model"
)

var ErrConfig = errors.New("binning: invalid configuration")

// FallbackBin is reported for contexts that were never observed.
const FallbackBin = ^uint32(0)

// Options controls a binning run.
type Options struct {
	// Bins is the maximum number of bins K.
	Bins int
	// MaxIterations bounds the k-means refinement rounds.
	MaxIterations int
	// PreBinLimit merges the lightest contexts into one before clustering so
	// at most PreBinLimit members remain. Zero disables pre-binning.
	PreBinLimit int
	// ScaleBits sets the total 1<<ScaleBits of the produced tables.
	ScaleBits uint8
}

func DefaultOptions() Options {
	return Options{Bins: 64, MaxIterations: 32, ScaleBits: 14}
}

func (o Options) Validate() error {
	switch {
	case o.Bins < 1:
		return fmt.Errorf("%w: %d bins", ErrConfig, o.Bins)
	case o.MaxIterations < 1:
		return fmt.Errorf("%w: %d iterations", ErrConfig, o.MaxIterations)
	case o.PreBinLimit < 0:
		return fmt.Errorf("%w: pre-binning limit %d", ErrConfig, o.PreBinLimit)
	case o.ScaleBits == 0 || o.ScaleBits > 16:
		return fmt.Errorf("%w: scale bits %d", ErrConfig, o.ScaleBits)
	}
	return nil
}

// Result is the outcome of binning: one table per bin and the bin of every
// observed context.
type Result struct {
	Tables [][]uint32
	// Weights is the number of symbols that fall in each bin.
	Weights []uint64
	Assign  map[uint32]uint32
	// Cost is the bits needed to code the input with Tables.
	Cost       float64
	Iterations int
}

// Len is the number of bins.
func (r *Result) Len() int { return len(r.Tables) }

// Lookup returns the bin of ctx or FallbackBin.
func (r *Result) Lookup(ctx uint32) uint32 {
	if b, ok := r.Assign[ctx]; ok {
		return b
	}
	return FallbackBin
}

// member is one clustering input: a context, or several pre-binned ones.
type member struct {
	contexts []uint32
	counts   []uint64
	weight   float64
	// sparse distribution
	syms  []int
	probs []float64
}

func newMember(ctxs []uint32, counts []uint64) *member {
	m := &member{contexts: ctxs, counts: counts}
	var total uint64
	for _, c := range counts {
		total += c
	}
	m.weight = float64(total)
	for s, c := range counts {
		if c > 0 {
			m.syms = append(m.syms, s)
			m.probs = append(m.probs, float64(c)/m.weight)
		}
	}
	return m
}

// crossEntropy against a centroid given as -log2 q per symbol.
func (m *member) crossEntropy(nlq []float64) float64 {
	var h float64
	for i, s := range m.syms {
		h += m.probs[i] * nlq[s]
	}
	return h
}

// Bin clusters the observed contexts of hs into at most opts.Bins bins.
func Bin(hs *model.Histograms, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	total := uint32(1) << opts.ScaleBits
	if uint64(hs.Alphabet) > uint64(total) {
		return nil, fmt.Errorf("%w: alphabet %d above table total %d", ErrConfig, hs.Alphabet, total)
	}
	members := collect(hs, opts.PreBinLimit)
	res := &Result{Assign: make(map[uint32]uint32, hs.Len())}
	if len(members) == 0 {
		return res, nil
	}

	floor := 1 / float64(total)
	seeds := seed(members, opts.Bins, floor)
	centroids := make([][]float64, len(seeds))
	for i, s := range seeds {
		centroids[i] = negLog2(dense(members[s], hs.Alphabet), floor)
	}

	assign := make([]int, len(members))
	for i := range assign {
		assign[i] = -1
	}
	var sums [][]uint64
	for res.Iterations < opts.MaxIterations {
		res.Iterations++
		next := nearest(members, centroids)
		changed := 0
		for i := range next {
			if next[i] != assign[i] {
				changed++
			}
		}
		assign = next
		sums = clusterCounts(members, assign, len(centroids), hs.Alphabet)
		if changed == 0 {
			break
		}
		for c, counts := range sums {
			if p := normalize(counts); p != nil {
				centroids[c] = negLog2(p, floor)
			}
		}
	}

	// compact away empty clusters
	remap := make([]int, len(sums))
	for c, counts := range sums {
		p := normalize(counts)
		if p == nil {
			remap[c] = -1
			continue
		}
		freq, err := model.Quantize(p, total)
		if err != nil {
			return nil, fmt.Errorf("binning: bin %d: %w", c, err)
		}
		remap[c] = len(res.Tables)
		res.Tables = append(res.Tables, freq)
		var w uint64
		for _, v := range counts {
			w += v
		}
		res.Weights = append(res.Weights, w)
		res.Cost += model.TableCost(&model.Histogram{Counts: counts, Total: w}, freq, total)
	}
	for i, m := range members {
		b := uint32(remap[assign[i]])
		for _, ctx := range m.contexts {
			res.Assign[ctx] = b
		}
	}
	return res, nil
}

// collect orders members heaviest first (ties by context id) and applies
// pre-binning.
func collect(hs *model.Histograms, limit int) []*member {
	members := make([]*member, 0, hs.Len())
	for _, ctx := range hs.Contexts() {
		h := hs.ByContext[ctx]
		if h.Total == 0 {
			continue
		}
		members = append(members, newMember([]uint32{ctx}, h.Counts))
	}
	slices.SortStableFunc(members, func(a, b *member) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		}
		return 0
	})
	if limit <= 0 || len(members) <= limit {
		return members
	}
	keep := members[:limit-1]
	var ctxs []uint32
	counts := make([]uint64, hs.Alphabet)
	for _, m := range members[limit-1:] {
		ctxs = append(ctxs, m.contexts...)
		for s, c := range m.counts {
			counts[s] += c
		}
	}
	return append(keep, newMember(ctxs, counts))
}

// seed picks up to k initial centroids: the heaviest member, then repeatedly
// the member whose weighted excess cost against its nearest centroid is
// largest. Seeding stops early once every member is matched exactly.
func seed(members []*member, k int, floor float64) []int {
	alphabet := len(members[0].counts)
	self := make([]float64, len(members))
	excess := make([]float64, len(members))
	parallel.Range(0, len(members), 0, func(low, high int) {
		for i := low; i < high; i++ {
			self[i] = members[i].crossEntropy(negLog2(dense(members[i], alphabet), floor))
			excess[i] = math.Inf(1)
		}
	})

	seeds := []int{0}
	for {
		nlq := negLog2(dense(members[seeds[len(seeds)-1]], alphabet), floor)
		parallel.Range(0, len(members), 0, func(low, high int) {
			for i := low; i < high; i++ {
				d := members[i].weight * (members[i].crossEntropy(nlq) - self[i])
				if d < excess[i] {
					excess[i] = d
				}
			}
		})
		if len(seeds) >= k {
			break
		}
		best := -1
		for i, d := range excess {
			if d > 1e-9 && (best < 0 || d > excess[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		seeds = append(seeds, best)
	}
	return seeds
}

// nearest assigns every member to its cheapest centroid against a frozen
// centroid set. Ties go to the lower centroid index.
func nearest(members []*member, centroids [][]float64) []int {
	out := make([]int, len(members))
	parallel.Range(0, len(members), 0, func(low, high int) {
		for i := low; i < high; i++ {
			best, bestCost := 0, math.Inf(1)
			for c, nlq := range centroids {
				if cost := members[i].crossEntropy(nlq); cost < bestCost {
					best, bestCost = c, cost
				}
			}
			out[i] = best
		}
	})
	return out
}

func clusterCounts(members []*member, assign []int, k, alphabet int) [][]uint64 {
	sums := make([][]uint64, k)
	for c := range sums {
		sums[c] = make([]uint64, alphabet)
	}
	for i, m := range members {
		for s, c := range m.counts {
			sums[assign[i]][s] += c
		}
	}
	return sums
}

func dense(m *member, alphabet int) []float64 {
	p := make([]float64, alphabet)
	for i, s := range m.syms {
		p[s] = m.probs[i]
	}
	return p
}

// normalize returns nil for an empty histogram.
func normalize(counts []uint64) []float64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil
	}
	p := make([]float64, len(counts))
	for i, c := range counts {
		p[i] = float64(c) / float64(total)
	}
	return p
}

func negLog2(p []float64, floor float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = -math.Log2(max(v, floor))
	}
	return out
}
