// Package idn is the coding pipeline: it derives contexts, bins them,
// codes every bin's symbols as independent rANS blocks on a worker pool and
// lays the result out as a self-describing container.
package idn

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/jpfielding/idencomp.go/pkg/binning"
	"github.com/jpfielding/idencomp.go/pkg/compress/rans"
	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
)

var (
	ErrConfig             = errors.New("idn: invalid configuration")
	ErrInvalidContextSpec = ctxspec.ErrInvalidContextSpec
	ErrModelViolation     = rans.ErrModelViolation
	ErrCorruptStream      = rans.ErrCorruptStream
)

// DefaultMaxBlockSymbols caps a coded block before it is split into sub-blocks.
const DefaultMaxBlockSymbols = 1 << 20

// Options configures encoding. Decoding reads everything it needs from the
// container and only uses Workers.
type Options struct {
	// MaxBins is the upper bound K of the number of bins.
	MaxBins int
	// MaxBlockSymbols splits large bins into sub-blocks coded in parallel.
	MaxBlockSymbols int
	// Workers sizes the block worker pool, zero means GOMAXPROCS.
	Workers int
	// MaxIterations bounds the binning refinement.
	MaxIterations int
	// PreBinLimit merges the lightest contexts before binning, zero disables it.
	PreBinLimit   int
	MetadataCodec MetadataCodec
	Coder         rans.Config
}

func DefaultOptions() Options {
	return Options{
		MaxBins:         64,
		MaxBlockSymbols: DefaultMaxBlockSymbols,
		MaxIterations:   32,
		MetadataCodec:   CodecZstd,
		Coder:           rans.DefaultConfig(),
	}
}

// Validate checks the options for an alphabet of the given size.
func (o Options) Validate(alphabet int) error {
	if o.MaxBlockSymbols < 1 || o.MaxBlockSymbols > maxCount {
		return fmt.Errorf("%w: max block symbols %d", ErrConfig, o.MaxBlockSymbols)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: %d workers", ErrConfig, o.Workers)
	}
	if !o.MetadataCodec.Valid() {
		return fmt.Errorf("%w: metadata codec %d", ErrConfig, o.MetadataCodec)
	}
	if err := o.Coder.Validate(alphabet); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := o.binning().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) binning() binning.Options {
	return binning.Options{
		Bins:          o.MaxBins,
		MaxIterations: o.MaxIterations,
		PreBinLimit:   o.PreBinLimit,
		ScaleBits:     o.Coder.ScaleBits,
	}
}
