package ctxspec

import (
	"fmt"
	"strings"

	"github.com/jpfielding/idencomp.go/pkg/sequence"
)

// intQueue is a fixed-length FIFO of base-N digits packed in one integer,
// newest digit least significant.
type intQueue struct {
	state   uint32
	base    uint32
	lastPow uint32
}

func newIntQueue(base uint32, length uint8) intQueue {
	q := intQueue{base: base}
	if length > 0 {
		q.lastPow = 1
		for i := uint8(1); i < length; i++ {
			q.lastPow *= base
		}
	}
	return q
}

func (q *intQueue) push(v uint32) {
	if q.lastPow == 0 {
		return
	}
	q.state = q.state%q.lastPow*q.base + v
}

// Deriver walks one read and yields the context of each position. It is
// not safe for concurrent use; every read gets its own Deriver.
type Deriver struct {
	light    bool
	qMax     uint32
	acids    intQueue
	quals    intQueue
	acidBits uint8
	posBits  uint8
	position uint64
	length   uint64
}

// NewDeriver starts derivation of a read with readLength positions. Missing
// history reads as the family default (N and quality zero).
func (s Spec) NewDeriver(readLength int) *Deriver {
	return &Deriver{
		light:    s.Family == Light,
		qMax:     uint32(s.QualityMax),
		acids:    newIntQueue(s.acidBase(), s.AcidOrder),
		quals:    newIntQueue(s.qualityBase(), s.QualityOrder),
		acidBits: s.AcidBits(),
		posBits:  s.PositionBits,
		length:   uint64(readLength),
	}
}

// Position returns the index of the symbol the current context belongs to.
func (d *Deriver) Position() int { return int(d.position) }

// Context returns the identifier for the current position.
func (d *Deriver) Context() uint32 {
	var bucket uint32
	if d.length > 0 {
		bucket = uint32(d.position << d.posBits / d.length)
	}
	v := d.quals.state
	v = v<<d.acidBits | d.acids.state
	return v<<d.posBits | bucket
}

// Update records the symbols at the current position and advances.
func (d *Deriver) Update(acid sequence.Acid, q sequence.QualityScore) {
	a, qs := uint32(acid), uint32(q)
	if d.light {
		if acid == sequence.N || q == 0 {
			a, qs = 0, 0
		} else {
			a, qs = a-1, qs*d.qMax/sequence.QualitySize
		}
	}
	d.acids.push(a)
	d.quals.push(qs)
	d.position++
}

// Compose builds a Generic context identifier directly from a history,
// oldest symbol first, and a position bucket.
func (s Spec) Compose(acids []sequence.Acid, quals []sequence.QualityScore, bucket uint32) (uint32, error) {
	if s.Family != Generic {
		return 0, fmt.Errorf("%w: compose needs a generic spec", ErrInvalidContextSpec)
	}
	if len(acids) != int(s.AcidOrder) || len(quals) != int(s.QualityOrder) || bucket >= 1<<s.PositionBits {
		return 0, fmt.Errorf("%w: history does not fit %s", ErrInvalidContextSpec, s)
	}
	aq := newIntQueue(s.acidBase(), s.AcidOrder)
	for _, a := range acids {
		aq.push(uint32(a))
	}
	qq := newIntQueue(s.qualityBase(), s.QualityOrder)
	for _, q := range quals {
		qq.push(uint32(q))
	}
	v := qq.state<<s.AcidBits() | aq.state
	return v<<s.PositionBits | bucket, nil
}

// Decompose is the inverse of Compose.
func (s Spec) Decompose(ctx uint32) ([]sequence.Acid, []sequence.QualityScore, uint32) {
	bucket := ctx & (1<<s.PositionBits - 1)
	ctx >>= s.PositionBits
	av := ctx & (1<<s.AcidBits() - 1)
	qv := ctx >> s.AcidBits()

	acids := make([]sequence.Acid, s.AcidOrder)
	for i := len(acids) - 1; i >= 0; i-- {
		acids[i] = sequence.Acid(av % s.acidBase())
		av /= s.acidBase()
	}
	quals := make([]sequence.QualityScore, s.QualityOrder)
	for i := len(quals) - 1; i >= 0; i-- {
		quals[i] = sequence.QualityScore(qv % s.qualityBase())
		qv /= s.qualityBase()
	}
	return acids, quals, bucket
}

// Describe renders a context for diagnostics, e.g. "ACGTN, !0~, 3/4".
// Light contexts print their raw reduced digits.
func (s Spec) Describe(ctx uint32) string {
	acids, quals, bucket := s.Decompose(ctx)
	var sb strings.Builder
	for _, a := range acids {
		if s.Family == Light {
			fmt.Fprintf(&sb, "%d", a)
			continue
		}
		sb.WriteByte(a.Byte())
	}
	sb.WriteString(", ")
	for i, q := range quals {
		if s.Family == Light {
			if i > 0 {
				sb.WriteByte('.')
			}
			fmt.Fprintf(&sb, "%d", q)
			continue
		}
		sb.WriteByte(q.Byte())
	}
	fmt.Fprintf(&sb, ", %d/%d", bucket, 1<<s.PositionBits)
	return sb.String()
}
