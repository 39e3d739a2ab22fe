package idn

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/exascience/pargo/parallel"
	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
)

// Candidate is the estimated cost of coding a stream under one spec.
type Candidate struct {
	Spec ctxspec.Spec
	Bins int
	// PayloadBits is the binned model cost of the symbols.
	PayloadBits float64
	// ModelBits approximates the tables and the context assignment.
	ModelBits float64
	Err       error
}

// Bits is the total estimated cost.
func (c Candidate) Bits() float64 { return c.PayloadBits + c.ModelBits }

// SelectSpec estimates every candidate on reads and returns the cheapest
// along with all candidates, cheapest first. Candidates that fail are kept
// with Err set and sorted last.
func SelectSpec(ctx context.Context, stream sequence.StreamType, reads []sequence.Read, candidates []ctxspec.Spec, opts Options) (ctxspec.Spec, []Candidate, error) {
	if len(candidates) == 0 {
		return ctxspec.Spec{}, nil, fmt.Errorf("%w: no candidate specs", ErrConfig)
	}
	if err := opts.Validate(stream.Alphabet()); err != nil {
		return ctxspec.Spec{}, nil, err
	}
	out := make([]Candidate, len(candidates))
	parallel.Range(0, len(candidates), 0, func(low, high int) {
		for i := low; i < high; i++ {
			out[i] = estimate(ctx, stream, reads, candidates[i], opts)
		}
	})
	if err := ctx.Err(); err != nil {
		return ctxspec.Spec{}, nil, err
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case (a.Err == nil) != (b.Err == nil):
			if a.Err == nil {
				return -1
			}
			return 1
		case a.Bits() < b.Bits():
			return -1
		case a.Bits() > b.Bits():
			return 1
		}
		return 0
	})
	if out[0].Err != nil {
		return ctxspec.Spec{}, out, out[0].Err
	}
	slog.DebugContext(ctx, "selected context spec", "stream", stream, "spec", out[0].Spec, "bits", out[0].Bits())
	return out[0].Spec, out, nil
}

func estimate(ctx context.Context, stream sequence.StreamType, reads []sequence.Read, spec ctxspec.Spec, opts Options) Candidate {
	c := Candidate{Spec: spec}
	a, err := Analyze(ctx, stream, reads, spec)
	if err != nil {
		c.Err = err
		return c
	}
	res, err := a.Bin(opts)
	if err != nil {
		c.Err = err
		return c
	}
	c.Bins = res.Len()
	c.PayloadBits = res.Cost
	// two varint bytes per table entry and per assignment entry
	c.ModelBits = float64(res.Len()*stream.Alphabet()*16 + a.Histograms.Len()*16)
	return c
}

// CurvePoint is the binned rate for one bin count.
type CurvePoint struct {
	Bins       int
	UsedBins   int
	BinnedRate float64
}

// BinCurve bins the analysis with every bin count in ks.
func (a *Analysis) BinCurve(ctx context.Context, ks []int, opts Options) ([]CurvePoint, error) {
	out := make([]CurvePoint, 0, len(ks))
	for _, k := range ks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := opts
		o.MaxBins = k
		res, err := a.Bin(o)
		if err != nil {
			return nil, fmt.Errorf("idn: %d bins: %w", k, err)
		}
		p := CurvePoint{Bins: k, UsedBins: res.Len()}
		if n := a.Histograms.Symbols; n > 0 {
			p.BinnedRate = res.Cost / float64(n)
		}
		out = append(out, p)
	}
	return out, nil
}
