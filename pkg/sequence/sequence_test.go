package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRead(t *testing.T) {
	r, err := ParseRead([]byte("ACGTNacgt"), []byte("!#5I~!!!!"))
	require.NoError(t, err)
	assert.Equal(t, []Acid{A, C, G, T, N, A, C, G, T}, r.Acids)
	assert.Equal(t, []QualityScore{0, 2, 20, 40, 93, 0, 0, 0, 0}, r.Qualities)
	require.NoError(t, r.Validate())

	seq, qual := r.AppendFASTQ(nil, nil)
	assert.Equal(t, "ACGTNACGT", string(seq))
	assert.Equal(t, "!#5I~!!!!", string(qual))
}

func TestParseReadErrors(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		qual string
		err  error
	}{
		{"LengthMismatch", "AC", "!", ErrLengthMismatch},
		{"BadAcid", "AX", "!!", ErrInvalidAcid},
		{"BadQuality", "AC", "! ", ErrInvalidQuality},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRead([]byte(tt.seq), []byte(tt.qual))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStream(t *testing.T) {
	r := Read{Acids: []Acid{G, A}, Qualities: []QualityScore{7, 9}}
	assert.Equal(t, []byte{4, 1}, r.Stream(Acids))
	assert.Equal(t, []byte{7, 9}, r.Stream(Qualities))
	assert.Equal(t, 5, Acids.Alphabet())
	assert.Equal(t, 94, Qualities.Alphabet())

	st, err := ParseStreamType("quality")
	require.NoError(t, err)
	assert.Equal(t, Qualities, st)
	_, err = ParseStreamType("names")
	assert.Error(t, err)
}
