// Package sequence holds the symbol alphabets of sequencing reads.
package sequence

import (
	"errors"
	"fmt"
)

// Acid is a nucleotide call. The zero value is N (unknown).
type Acid uint8

const (
	N Acid = iota
	A
	C
	T
	G
)

// AcidSize is the number of distinct acids.
const AcidSize = 5

// QualityScore is a Phred quality value in [0, QualitySize).
type QualityScore uint8

// QualitySize is the number of distinct quality scores, '!'..'~' in FASTQ.
const QualitySize = 94

var (
	ErrInvalidAcid    = errors.New("sequence: invalid acid")
	ErrInvalidQuality = errors.New("sequence: invalid quality score")
	ErrLengthMismatch = errors.New("sequence: acid and quality lengths differ")
)

var acidBytes = [AcidSize]byte{'N', 'A', 'C', 'T', 'G'}

// AcidFromByte maps a FASTQ base letter to an Acid. Lower case is accepted.
func AcidFromByte(b byte) (Acid, error) {
	switch b {
	case 'N', 'n':
		return N, nil
	case 'A', 'a':
		return A, nil
	case 'C', 'c':
		return C, nil
	case 'T', 't':
		return T, nil
	case 'G', 'g':
		return G, nil
	}
	return N, fmt.Errorf("%w: %q", ErrInvalidAcid, b)
}

// Byte returns the FASTQ letter of the acid.
func (a Acid) Byte() byte {
	if int(a) >= AcidSize {
		return '?'
	}
	return acidBytes[a]
}

func (a Acid) String() string { return string(a.Byte()) }

// QualityFromByte maps a FASTQ quality character (Phred+33) to a score.
func QualityFromByte(b byte) (QualityScore, error) {
	if b < '!' || b > '~' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, b)
	}
	return QualityScore(b - '!'), nil
}

// Byte returns the Phred+33 character of the score.
func (q QualityScore) Byte() byte { return byte(q) + '!' }

// StreamType selects which of the two read streams is being coded.
type StreamType uint8

const (
	Acids StreamType = iota
	Qualities
)

// Alphabet returns the number of symbols of the stream.
func (s StreamType) Alphabet() int {
	if s == Acids {
		return AcidSize
	}
	return QualitySize
}

// Valid reports whether s is a known stream type.
func (s StreamType) Valid() bool { return s == Acids || s == Qualities }

func (s StreamType) String() string {
	switch s {
	case Acids:
		return "acids"
	case Qualities:
		return "qualities"
	}
	return fmt.Sprintf("stream(%d)", uint8(s))
}

// ParseStreamType accepts the names printed by String.
func ParseStreamType(name string) (StreamType, error) {
	switch name {
	case "acids", "acid", "seq":
		return Acids, nil
	case "qualities", "quality", "qual":
		return Qualities, nil
	}
	return 0, fmt.Errorf("sequence: unknown stream type %q", name)
}

// Read is one sequencing read: an acid per position and its quality score.
type Read struct {
	Acids     []Acid
	Qualities []QualityScore
}

// Len returns the number of positions in the read.
func (r Read) Len() int { return len(r.Acids) }

// Validate checks that both streams have the same length and stay inside their alphabets.
func (r Read) Validate() error {
	if len(r.Acids) != len(r.Qualities) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(r.Acids), len(r.Qualities))
	}
	for i, a := range r.Acids {
		if int(a) >= AcidSize {
			return fmt.Errorf("%w: %d at %d", ErrInvalidAcid, a, i)
		}
	}
	for i, q := range r.Qualities {
		if int(q) >= QualitySize {
			return fmt.Errorf("%w: %d at %d", ErrInvalidQuality, q, i)
		}
	}
	return nil
}

// Stream returns the symbols of the given stream as bytes.
func (r Read) Stream(s StreamType) []byte {
	out := make([]byte, r.Len())
	if s == Acids {
		for i, a := range r.Acids {
			out[i] = byte(a)
		}
		return out
	}
	for i, q := range r.Qualities {
		out[i] = byte(q)
	}
	return out
}

// ParseRead builds a read from FASTQ sequence and quality lines.
func ParseRead(seq, qual []byte) (Read, error) {
	if len(seq) != len(qual) {
		return Read{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(seq), len(qual))
	}
	r := Read{
		Acids:     make([]Acid, len(seq)),
		Qualities: make([]QualityScore, len(qual)),
	}
	for i := range seq {
		a, err := AcidFromByte(seq[i])
		if err != nil {
			return Read{}, err
		}
		q, err := QualityFromByte(qual[i])
		if err != nil {
			return Read{}, err
		}
		r.Acids[i], r.Qualities[i] = a, q
	}
	return r, nil
}

// AppendFASTQ appends the sequence and quality lines of r.
func (r Read) AppendFASTQ(seq, qual []byte) ([]byte, []byte) {
	for _, a := range r.Acids {
		seq = append(seq, a.Byte())
	}
	for _, q := range r.Qualities {
		qual = append(qual, q.Byte())
	}
	return seq, qual
}
