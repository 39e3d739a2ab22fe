package rans

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, cfg Config, freqs []uint32) *FrequencyTable {
	t.Helper()
	tab, err := cfg.NewTable(freqs)
	require.NoError(t, err)
	return tab
}

// skewed draws symbols roughly following freqs.
func skewed(rng *rand.Rand, freqs []uint32, total uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		r := uint32(rng.Intn(int(total)))
		var cum uint32
		for s, f := range freqs {
			cum += f
			if r < cum {
				out[i] = byte(s)
				break
			}
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(7))
	tests := []struct {
		name  string
		freqs []uint32
		n     int
	}{
		{"Empty", []uint32{4096, 4096, 4096, 4096}, 0},
		{"Uniform", []uint32{4096, 4096, 4096, 4096}, 1000},
		{"Skewed", []uint32{1, 8191, 4095, 1, 4096}, 5000},
		{"SingleSymbol", []uint32{0, 16384, 0}, 300},
		{"Large", []uint32{16000, 100, 100, 100, 84}, 200000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := mustTable(t, cfg, tt.freqs)
			symbols := skewed(rng, tt.freqs, cfg.Total(), tt.n)

			data, err := EncodeBlock(cfg, tab, symbols)
			require.NoError(t, err)
			got, err := DecodeBlock(cfg, tab, data, len(symbols), nil)
			require.NoError(t, err)
			assert.Equal(t, symbols, got)
		})
	}
}

func TestSingleSymbolCostsNothing(t *testing.T) {
	cfg := DefaultConfig()
	tab := mustTable(t, cfg, []uint32{0, cfg.Total()})
	_, err := EncodeBlock(cfg, tab, make([]byte, 10000))
	assert.ErrorIs(t, err, ErrModelViolation)

	ones := make([]byte, 10000)
	for i := range ones {
		ones[i] = 1
	}
	data, err := EncodeBlock(cfg, tab, ones)
	require.NoError(t, err)
	assert.Len(t, data, 4)
	got, err := DecodeBlock(cfg, tab, data, len(ones), nil)
	require.NoError(t, err)
	assert.Equal(t, ones, got)
}

func TestDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	tab := mustTable(t, cfg, []uint32{1000, 2000, 3000, 10384})
	symbols := skewed(rand.New(rand.NewSource(1)), tab.Freqs(), cfg.Total(), 4096)
	a, err := EncodeBlock(cfg, tab, symbols)
	require.NoError(t, err)
	b, err := EncodeBlock(cfg, tab, symbols)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNearEntropy(t *testing.T) {
	cfg := DefaultConfig()
	tab := mustTable(t, cfg, []uint32{8192, 4096, 2048, 2048})
	symbols := skewed(rand.New(rand.NewSource(3)), tab.Freqs(), cfg.Total(), 100000)
	var ideal float64
	for _, s := range symbols {
		ideal += tab.Cost(s)
	}
	data, err := EncodeBlock(cfg, tab, symbols)
	require.NoError(t, err)
	assert.InDelta(t, ideal/8, float64(len(data)), ideal/8*0.01+8)
}

func TestModelViolation(t *testing.T) {
	cfg := DefaultConfig()
	tab := mustTable(t, cfg, []uint32{8192, 0, 8192})
	_, err := EncodeBlock(cfg, tab, []byte{0, 1, 2})
	assert.ErrorIs(t, err, ErrModelViolation)
	_, err = EncodeBlock(cfg, tab, []byte{0, 7})
	assert.ErrorIs(t, err, ErrModelViolation)
}

func TestCorruptStream(t *testing.T) {
	cfg := DefaultConfig()
	tab := mustTable(t, cfg, []uint32{100, 5000, 6000, 5284})
	symbols := skewed(rand.New(rand.NewSource(11)), tab.Freqs(), cfg.Total(), 2000)
	data, err := EncodeBlock(cfg, tab, symbols)
	require.NoError(t, err)

	t.Run("ShortHeader", func(t *testing.T) {
		_, err := DecodeBlock(cfg, tab, data[:3], len(symbols), nil)
		assert.ErrorIs(t, err, ErrCorruptStream)
	})
	t.Run("Truncated", func(t *testing.T) {
		_, err := DecodeBlock(cfg, tab, data[:len(data)/2], len(symbols), nil)
		assert.ErrorIs(t, err, ErrCorruptStream)
		assert.Contains(t, err.Error(), "truncated")
	})
	t.Run("Trailing", func(t *testing.T) {
		_, err := DecodeBlock(cfg, tab, append(append([]byte{}, data...), 0x42), len(symbols), nil)
		assert.ErrorIs(t, err, ErrCorruptStream)
	})
	t.Run("BitFlips", func(t *testing.T) {
		for i := 0; i < len(data); i += 7 {
			bad := append([]byte{}, data...)
			bad[i] ^= 0x10
			got, err := DecodeBlock(cfg, tab, bad, len(symbols), nil)
			if err == nil {
				assert.NotEqual(t, symbols, got, "flip at %d went unnoticed", i)
				continue
			}
			assert.ErrorIs(t, err, ErrCorruptStream)
		}
	})
}

func TestTableValidation(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.NewTable([]uint32{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidTable)
	_, err = cfg.NewTable(nil)
	assert.ErrorIs(t, err, ErrInvalidTable)

	tab := mustTable(t, cfg, []uint32{16380, 0, 4, 0})
	for slot := uint32(0); slot < cfg.Total(); slot++ {
		sym := tab.Lookup(slot)
		require.NotZero(t, tab.Freq(sym), "slot %d", slot)
		assert.True(t, slot >= tab.Cum(sym) && slot < tab.Cum(sym)+tab.Freq(sym))
	}
	assert.Equal(t, byte(2), tab.Lookup(cfg.Total()-1))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		alphabet int
		ok       bool
	}{
		{"Default", DefaultConfig(), 94, true},
		{"Scale12", Config{ScaleBits: 12, LowerBound: 1 << 23}, 5, true},
		{"ZeroScale", Config{ScaleBits: 0, LowerBound: 1 << 23}, 5, false},
		{"ScaleTooBig", Config{ScaleBits: 17, LowerBound: 1 << 23}, 5, false},
		{"BoundNotPow2", Config{ScaleBits: 14, LowerBound: 3 << 20}, 5, false},
		{"BoundTooBig", Config{ScaleBits: 14, LowerBound: 1 << 24}, 5, false},
		{"AlphabetAboveTotal", Config{ScaleBits: 4, LowerBound: 1 << 23}, 94, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.alphabet)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
