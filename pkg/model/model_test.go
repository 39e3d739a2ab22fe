package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantizeKnownValues(t *testing.T) {
	tests := []struct {
		name  string
		p     []float64
		total uint32
		cum   []uint32
	}{
		{"Uniform", []float64{0.25, 0.25, 0.25, 0.25}, 16, []uint32{0, 4, 8, 12}},
		{"Bigger", []float64{0.05, 0.10, 0.125, 0.125, 0.30, 0.03, 0.07, 0.05, 0.12, 0.03}, 1024,
			[]uint32{0, 51, 154, 282, 410, 717, 748, 819, 870, 993}},
		{"LowFreq", []float64{0.01, 0.01, 0.49, 0.49}, 16, []uint32{0, 1, 2, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			freq, err := Quantize(tt.p, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.cum, CumFreqs(freq))
			assertSums(t, freq, tt.total)
		})
	}
}

func assertSums(t *testing.T, freq []uint32, total uint32) {
	t.Helper()
	var sum uint32
	for _, f := range freq {
		sum += f
	}
	assert.Equal(t, total, sum)
}

func TestQuantizeRepair(t *testing.T) {
	// order-0 model of [A,A,C,G] over N,A,C,T,G
	freq, err := Quantize([]float64{0, 0.5, 0.25, 0, 0.25}, 1<<14)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 8191, 4095, 1, 4096}, freq)

	// a single observed symbol keeps the whole total
	freq, err = Quantize([]float64{0, 0, 1, 0}, 1<<14)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0, 1 << 14, 0}, freq)
}

func TestQuantizeRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p := make([]float64, 94)
		for j := range p {
			if rng.Intn(3) == 0 {
				p[j] = rng.Float64() * rng.Float64() * rng.Float64()
			}
		}
		p[rng.Intn(len(p))] += 1e-9
		freq, err := Quantize(p, 1<<14)
		require.NoError(t, err)
		assertSums(t, freq, 1<<14)
		for j, v := range p {
			if v > 0 {
				assert.NotZero(t, freq[j], "symbol %d lost its mass", j)
			}
		}
	}
}

func TestQuantizeErrors(t *testing.T) {
	_, err := Quantize(nil, 16)
	assert.ErrorIs(t, err, ErrEmptyDistribution)
	_, err = Quantize([]float64{0, 0}, 16)
	assert.ErrorIs(t, err, ErrEmptyDistribution)
	_, err = Quantize([]float64{0.5, 0.5, 0, 0}, 2)
	assert.Error(t, err)
	_, err = Quantize([]float64{-1, 2}, 16)
	assert.Error(t, err)
}

func TestEntropy(t *testing.T) {
	assert.InDelta(t, 1.905639, Entropy([]float64{0.25, 0.25, 0.125, 0.375}), 1e-6)
	assert.InDelta(t, 2.0, Entropy([]float64{0.25, 0.25, 0.25, 0.25}), 1e-9)
	assert.Zero(t, Entropy([]float64{1, 0}))

	p := []float64{0.5, 0.5, 0}
	assert.InDelta(t, 1.0, CrossEntropy(p, p, 1e-9), 1e-9)
	assert.Greater(t, CrossEntropy(p, []float64{0.9, 0.1, 0}, 1e-9), 1.0)
}

func TestEstimate(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := parallelThreshold*3 + 17
	contexts := make([]uint32, n)
	symbols := make([]byte, n)
	for i := range contexts {
		contexts[i] = uint32(rng.Intn(40))
		symbols[i] = byte(rng.Intn(5))
	}

	par := Estimate(contexts, symbols, 5)
	seq := NewHistograms(5)
	for i := range contexts {
		seq.Observe(contexts[i], symbols[i])
	}
	assert.Equal(t, seq.Symbols, par.Symbols)
	assert.Equal(t, seq.Contexts(), par.Contexts())
	for ctx, h := range seq.ByContext {
		assert.Equal(t, h, par.ByContext[ctx])
	}
	assert.InDelta(t, seq.Rate(), par.Rate(), 1e-9)
	assert.Equal(t, uint64(n), par.Marginal().Total)
}

func TestRate(t *testing.T) {
	hs := Estimate([]uint32{0, 0, 0, 0}, []byte{1, 1, 2, 4}, 5)
	assert.Equal(t, 1, hs.Len())
	assert.InDelta(t, 1.5, hs.Rate(), 1e-9)

	// two deterministic contexts cost nothing
	hs = Estimate([]uint32{0, 1, 0, 1}, []byte{1, 2, 1, 2}, 5)
	assert.Zero(t, hs.Rate())
	assert.Zero(t, NewHistograms(5).Rate())
}

func TestTableCost(t *testing.T) {
	h := &Histogram{Counts: []uint64{0, 2, 1, 0, 1}, Total: 4}
	cost := TableCost(h, []uint32{0, 8, 4, 0, 4}, 16)
	assert.InDelta(t, 6.0, cost, 1e-9)
	h.Counts[0] = 1
	assert.True(t, TableCost(h, []uint32{0, 8, 4, 0, 4}, 16) > 1e300)
}
