// Package ctxspec defines context specifications: the rule that maps the
// history of a read (previous acids, previous quality scores, position) to
// a context identifier.
package ctxspec

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/jpfielding/idencomp.go/pkg/sequence"
)

var ErrInvalidContextSpec = errors.New("ctxspec: invalid context specification")

// Family selects how history symbols are reduced before they enter the context.
type Family uint8

const (
	// Generic keeps full acids (base 5) and full quality scores (base 94).
	Generic Family = iota + 1
	// Light drops N, folds acids to base 4 and buckets quality scores to QualityMax levels.
	Light
)

func (f Family) String() string {
	switch f {
	case Generic:
		return "generic"
	case Light:
		return "light"
	}
	return "family(" + strconv.Itoa(int(f)) + ")"
}

const (
	// MaxPositionBits bounds the read-position bucket width.
	MaxPositionBits = 8
	maxOrder        = 15
	maxTotalBits    = 31
)

// Spec is an immutable context specification.
type Spec struct {
	Family       Family
	AcidOrder    uint8
	QualityOrder uint8
	PositionBits uint8
	// QualityMax is the number of quality buckets of the Light family.
	QualityMax uint8
}

// Dummy returns the specification with a single context.
func Dummy() Spec { return Spec{Family: Generic} }

// NewGeneric returns a Generic specification.
func NewGeneric(acidOrder, qualityOrder, positionBits uint8) Spec {
	return Spec{Family: Generic, AcidOrder: acidOrder, QualityOrder: qualityOrder, PositionBits: positionBits}
}

// NewLight returns a Light specification.
func NewLight(acidOrder, qualityOrder, positionBits, qualityMax uint8) Spec {
	return Spec{Family: Light, AcidOrder: acidOrder, QualityOrder: qualityOrder, PositionBits: positionBits, QualityMax: qualityMax}
}

func (s Spec) acidBase() uint32 {
	if s.Family == Light {
		return 4
	}
	return sequence.AcidSize
}

func (s Spec) qualityBase() uint32 {
	if s.Family == Light {
		return uint32(s.QualityMax)
	}
	return sequence.QualitySize
}

// queueBits is the bit width needed for base^order - 1, or ok=false past 32 bits.
func queueBits(base uint32, order uint8) (uint8, bool) {
	pow := uint64(1)
	for i := uint8(0); i < order; i++ {
		pow *= uint64(base)
		if pow > 1<<32 {
			return 0, false
		}
	}
	return uint8(bits.Len64(pow - 1)), true
}

func (s Spec) AcidBits() uint8 {
	b, _ := queueBits(s.acidBase(), s.AcidOrder)
	return b
}

func (s Spec) QualityBits() uint8 {
	b, _ := queueBits(s.qualityBase(), s.QualityOrder)
	return b
}

// TotalBits is the width of a context identifier.
func (s Spec) TotalBits() uint8 {
	return s.AcidBits() + s.QualityBits() + s.PositionBits
}

// SpaceSize is the number of distinct context identifiers.
func (s Spec) SpaceSize() uint64 { return 1 << s.TotalBits() }

// Validate reports ErrInvalidContextSpec when s cannot be derived.
func (s Spec) Validate() error {
	switch s.Family {
	case Generic:
		if s.QualityMax != 0 {
			return fmt.Errorf("%w: generic spec with quality max %d", ErrInvalidContextSpec, s.QualityMax)
		}
	case Light:
		if s.QualityMax == 0 || s.QualityMax > sequence.QualitySize {
			return fmt.Errorf("%w: light quality max %d outside [1,%d]", ErrInvalidContextSpec, s.QualityMax, sequence.QualitySize)
		}
	default:
		return fmt.Errorf("%w: unknown family %d", ErrInvalidContextSpec, s.Family)
	}
	if s.AcidOrder > maxOrder || s.QualityOrder > maxOrder {
		return fmt.Errorf("%w: order above %d", ErrInvalidContextSpec, maxOrder)
	}
	if s.PositionBits > MaxPositionBits {
		return fmt.Errorf("%w: %d position bits above %d", ErrInvalidContextSpec, s.PositionBits, MaxPositionBits)
	}
	ab, ok1 := queueBits(s.acidBase(), s.AcidOrder)
	qb, ok2 := queueBits(s.qualityBase(), s.QualityOrder)
	if !ok1 || !ok2 || int(ab)+int(qb)+int(s.PositionBits) > maxTotalBits {
		return fmt.Errorf("%w: %s needs more than %d context bits", ErrInvalidContextSpec, s, maxTotalBits)
	}
	return nil
}

// UsesAcids reports whether derivation reads the acid stream. Light folds an
// N acid and quality zero into the same history value, so it reads both
// streams whenever either order is non-zero.
func (s Spec) UsesAcids() bool {
	return s.AcidOrder > 0 || (s.Family == Light && s.QualityOrder > 0)
}

// UsesQualities reports whether derivation reads the quality stream.
func (s Spec) UsesQualities() bool {
	return s.QualityOrder > 0 || (s.Family == Light && s.AcidOrder > 0)
}

// Tag is the compact wire form of a Spec.
type Tag uint32

// Tag packs s as family<<24 | acidOrder<<20 | qualityOrder<<16 | positionBits<<8 | qualityMax.
func (s Spec) Tag() Tag {
	return Tag(uint32(s.Family)<<24 | uint32(s.AcidOrder&0xF)<<20 | uint32(s.QualityOrder&0xF)<<16 |
		uint32(s.PositionBits)<<8 | uint32(s.QualityMax))
}

// FromTag unpacks and validates a wire tag.
func FromTag(t Tag) (Spec, error) {
	s := Spec{
		Family:       Family(t >> 24),
		AcidOrder:    uint8(t>>20) & 0xF,
		QualityOrder: uint8(t>>16) & 0xF,
		PositionBits: uint8(t >> 8),
		QualityMax:   uint8(t),
	}
	if err := s.Validate(); err != nil {
		return Spec{}, fmt.Errorf("tag %#08x: %w", uint32(t), err)
	}
	return s, nil
}

// String renders s in the form accepted by Parse.
func (s Spec) String() string {
	switch {
	case s == Dummy():
		return "dummy"
	case s.Family == Light:
		return fmt.Sprintf("light_ao%d_qo%d_pb%d_qm%d", s.AcidOrder, s.QualityOrder, s.PositionBits, s.QualityMax)
	default:
		return fmt.Sprintf("generic_ao%d_qo%d_pb%d", s.AcidOrder, s.QualityOrder, s.PositionBits)
	}
}

// Parse reads names like "dummy", "generic_ao4_qo1_pb2" or "light_ao4_qo1_pb2_qm16".
func Parse(name string) (Spec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "dummy" {
		return Dummy(), nil
	}
	parts := strings.Split(name, "_")
	var s Spec
	var want []string
	switch parts[0] {
	case "generic":
		s.Family = Generic
		want = []string{"ao", "qo", "pb"}
	case "light":
		s.Family = Light
		want = []string{"ao", "qo", "pb", "qm"}
	default:
		return Spec{}, fmt.Errorf("%w: unknown name %q", ErrInvalidContextSpec, name)
	}
	if len(parts)-1 != len(want) {
		return Spec{}, fmt.Errorf("%w: malformed name %q", ErrInvalidContextSpec, name)
	}
	fields := []*uint8{&s.AcidOrder, &s.QualityOrder, &s.PositionBits, &s.QualityMax}
	for i, prefix := range want {
		p := parts[i+1]
		if !strings.HasPrefix(p, prefix) {
			return Spec{}, fmt.Errorf("%w: expected %s in %q", ErrInvalidContextSpec, prefix, name)
		}
		v, err := strconv.ParseUint(p[len(prefix):], 10, 8)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: %q: %v", ErrInvalidContextSpec, name, err)
		}
		*fields[i] = uint8(v)
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}
