package binning

import (
	"math/rand"
	"testing"

	"github.com/jpfielding/idencomp.go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds contexts that each favour a different symbol.
func separable(contexts int, alphabet int, seed int64) *model.Histograms {
	rng := rand.New(rand.NewSource(seed))
	hs := model.NewHistograms(alphabet)
	for ctx := 0; ctx < contexts; ctx++ {
		n := 200 + rng.Intn(2000)
		fav := ctx % alphabet
		for i := 0; i < n; i++ {
			sym := fav
			if rng.Intn(10) == 0 {
				sym = rng.Intn(alphabet)
			}
			hs.Observe(uint32(ctx*17), byte(sym))
		}
	}
	return hs
}

func opts(k int) Options {
	o := DefaultOptions()
	o.Bins = k
	return o
}

func TestSingleBin(t *testing.T) {
	hs := separable(6, 5, 1)
	res, err := Bin(hs, opts(1))
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	for _, ctx := range hs.Contexts() {
		assert.Equal(t, uint32(0), res.Lookup(ctx))
	}
	want, err := model.Quantize(hs.Marginal().Distribution(), 1<<14)
	require.NoError(t, err)
	assert.Equal(t, want, res.Tables[0])
	assert.Equal(t, hs.Symbols, res.Weights[0])
}

func TestOneBinPerContext(t *testing.T) {
	hs := separable(5, 5, 2)
	res, err := Bin(hs, opts(50))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Len())
	seen := map[uint32]bool{}
	for _, ctx := range hs.Contexts() {
		b := res.Lookup(ctx)
		assert.False(t, seen[b], "bin %d shared", b)
		seen[b] = true
	}
	// one bin per context costs about the conditional entropy
	assert.InDelta(t, hs.Rate(), res.Cost/float64(hs.Symbols), 0.01)
}

func TestIdenticalContextsCollapse(t *testing.T) {
	hs := model.NewHistograms(5)
	for ctx := uint32(0); ctx < 4; ctx++ {
		for _, s := range []byte{1, 1, 2, 4} {
			hs.Observe(ctx, s)
		}
	}
	res, err := Bin(hs, opts(4))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
	assert.Equal(t, []uint32{1, 8191, 4095, 1, 4096}, res.Tables[0])
}

func TestTablesSumToTotal(t *testing.T) {
	hs := separable(40, 94, 3)
	res, err := Bin(hs, opts(7))
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Len(), 7)
	for b, tab := range res.Tables {
		var sum uint32
		for _, f := range tab {
			sum += f
		}
		assert.Equal(t, uint32(1<<14), sum, "bin %d", b)
	}
	for _, ctx := range hs.Contexts() {
		b := res.Lookup(ctx)
		require.Less(t, int(b), res.Len())
		for s, c := range hs.ByContext[ctx].Counts {
			if c > 0 {
				assert.NotZero(t, res.Tables[b][s], "ctx %d symbol %d", ctx, s)
			}
		}
	}
}

func TestDeterministic(t *testing.T) {
	hs := separable(60, 94, 4)
	a, err := Bin(hs, opts(9))
	require.NoError(t, err)
	b, err := Bin(hs, opts(9))
	require.NoError(t, err)
	assert.Equal(t, a.Tables, b.Tables)
	assert.Equal(t, a.Assign, b.Assign)
}

func TestMoreBinsNeverCostMore(t *testing.T) {
	hs := separable(8, 8, 5)
	prev := -1.0
	for k := 1; k <= hs.Len(); k++ {
		res, err := Bin(hs, opts(k))
		require.NoError(t, err)
		if prev >= 0 {
			assert.LessOrEqual(t, res.Cost, prev*(1+1e-6), "k=%d", k)
		}
		prev = res.Cost
	}
}

func TestPreBinning(t *testing.T) {
	hs := model.NewHistograms(5)
	weights := []int{500, 400, 300, 20, 10, 5}
	for ctx, w := range weights {
		for i := 0; i < w; i++ {
			hs.Observe(uint32(ctx), byte(ctx%5))
		}
	}
	o := opts(10)
	o.PreBinLimit = 3
	res, err := Bin(hs, o)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
	assert.Equal(t, res.Lookup(2), res.Lookup(3))
	assert.Equal(t, res.Lookup(3), res.Lookup(5))
	assert.NotEqual(t, res.Lookup(0), res.Lookup(1))
}

func TestEmptyAndUnobserved(t *testing.T) {
	res, err := Bin(model.NewHistograms(5), opts(3))
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Equal(t, FallbackBin, res.Lookup(12))

	hs := separable(2, 5, 6)
	res, err = Bin(hs, opts(2))
	require.NoError(t, err)
	assert.Equal(t, FallbackBin, res.Lookup(999))
}

func TestInvalidOptions(t *testing.T) {
	hs := separable(2, 5, 7)
	for _, o := range []Options{
		{Bins: 0, MaxIterations: 1, ScaleBits: 14},
		{Bins: 1, MaxIterations: 0, ScaleBits: 14},
		{Bins: 1, MaxIterations: 1, ScaleBits: 0},
		{Bins: 1, MaxIterations: 1, ScaleBits: 14, PreBinLimit: -1},
		{Bins: 1, MaxIterations: 1, ScaleBits: 2},
	} {
		_, err := Bin(hs, o)
		assert.ErrorIs(t, err, ErrConfig, "%+v", o)
	}
}
