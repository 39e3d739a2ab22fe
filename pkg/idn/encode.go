package idn

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/jpfielding/idencomp.go/pkg/binning"
	"github.com/jpfielding/idencomp.go/pkg/compress/rans"
	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/model"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
)

// Stats reports what binning and coding achieved. Rates are bits per symbol.
type Stats struct {
	Symbols        uint64
	OrigContexts   int
	BinnedContexts int
	// OrigRate is the conditional entropy with one model per context.
	OrigRate float64
	// BinnedRate is the ideal cost with the quantized per-bin tables.
	BinnedRate float64
	// CodedRate is the payload size actually produced.
	CodedRate    float64
	PayloadBytes int
	Blocks       int
	Iterations   int
}

// Analysis is the context-derived view of one stream of a read set.
type Analysis struct {
	Stream      sequence.StreamType
	Spec        ctxspec.Spec
	ReadLengths []int
	Contexts    []uint32
	Symbols     []byte
	Histograms  *model.Histograms
}

// Analyze derives the context of every symbol of stream and estimates the
// raw context model.
func Analyze(ctx context.Context, stream sequence.StreamType, reads []sequence.Read, spec ctxspec.Spec) (*Analysis, error) {
	if !stream.Valid() {
		return nil, fmt.Errorf("%w: stream type %d", ErrConfig, stream)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	a := &Analysis{Stream: stream, Spec: spec, ReadLengths: make([]int, len(reads))}
	offsets := make([]int, len(reads)+1)
	for i, r := range reads {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("idn: read %d: %w", i, err)
		}
		a.ReadLengths[i] = r.Len()
		offsets[i+1] = offsets[i] + r.Len()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := offsets[len(reads)]
	a.Contexts = make([]uint32, n)
	a.Symbols = make([]byte, n)
	parallel.Range(0, len(reads), 0, func(low, high int) {
		for i := low; i < high; i++ {
			r := reads[i]
			d := spec.NewDeriver(r.Len())
			off := offsets[i]
			for p := range r.Acids {
				a.Contexts[off+p] = d.Context()
				if stream == sequence.Acids {
					a.Symbols[off+p] = byte(r.Acids[p])
				} else {
					a.Symbols[off+p] = byte(r.Qualities[p])
				}
				d.Update(r.Acids[p], r.Qualities[p])
			}
		}
	})
	a.Histograms = model.Estimate(a.Contexts, a.Symbols, stream.Alphabet())
	return a, nil
}

// Bin runs context binning on the analysis.
func (a *Analysis) Bin(opts Options) (*binning.Result, error) {
	if err := opts.Validate(a.Stream.Alphabet()); err != nil {
		return nil, err
	}
	return binning.Bin(a.Histograms, opts.binning())
}

// Encode codes one stream of reads under spec.
func Encode(ctx context.Context, stream sequence.StreamType, reads []sequence.Read, spec ctxspec.Spec, opts Options) (*Container, Stats, error) {
	if err := opts.Validate(stream.Alphabet()); err != nil {
		return nil, Stats{}, err
	}
	start := time.Now()
	a, err := Analyze(ctx, stream, reads, spec)
	if err != nil {
		return nil, Stats{}, err
	}
	res, err := a.Bin(opts)
	if err != nil {
		return nil, Stats{}, err
	}
	slog.DebugContext(ctx, "binned contexts",
		"stream", stream, "spec", spec, "contexts", a.Histograms.Len(),
		"bins", res.Len(), "iterations", res.Iterations, "elapsed", time.Since(start))
	return a.encode(ctx, res, opts)
}

type blockJob struct {
	bin     int
	symbols []byte
}

func (a *Analysis) encode(ctx context.Context, res *binning.Result, opts Options) (*Container, Stats, error) {
	tables := make([]*rans.FrequencyTable, res.Len())
	for b, freqs := range res.Tables {
		t, err := opts.Coder.NewTable(freqs)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("idn: bin %d: %w", b, err)
		}
		tables[b] = t
	}

	perBin := make([][]byte, res.Len())
	for i, sym := range a.Symbols {
		b := res.Lookup(a.Contexts[i])
		perBin[b] = append(perBin[b], sym)
	}
	var jobs []blockJob
	for b, syms := range perBin {
		for lo := 0; lo < len(syms); lo += opts.MaxBlockSymbols {
			hi := min(lo+opts.MaxBlockSymbols, len(syms))
			jobs = append(jobs, blockJob{bin: b, symbols: syms[lo:hi]})
		}
	}

	payloads := make([][]byte, len(jobs))
	err := runPool(ctx, opts.workers(), len(jobs), func(_ context.Context, i int) error {
		job := jobs[i]
		data, err := rans.EncodeBlock(opts.Coder, tables[job.bin], job.symbols)
		if err != nil {
			return fmt.Errorf("idn: block %d (bin %d): %w", i, job.bin, err)
		}
		payloads[i] = data
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}

	c := &Container{
		Stream:      a.Stream,
		Spec:        a.Spec,
		Coder:       opts.Coder,
		Checksum:    crc32.ChecksumIEEE(a.Symbols),
		Codec:       opts.MetadataCodec,
		ReadLengths: a.ReadLengths,
		Assign:      res.Assign,
		Tables:      res.Tables,
		Blocks:      make([]BlockInfo, len(jobs)),
	}
	var size int
	for _, p := range payloads {
		size += len(p)
	}
	c.Payload = make([]byte, 0, size)
	for i, job := range jobs {
		c.Blocks[i] = BlockInfo{
			Bin:     uint32(job.bin),
			Symbols: uint64(len(job.symbols)),
			Offset:  uint64(len(c.Payload)),
			Length:  uint64(len(payloads[i])),
		}
		c.Payload = append(c.Payload, payloads[i]...)
	}
	c.ID = c.contentID(c.metadata())

	st := Stats{
		Symbols:        uint64(len(a.Symbols)),
		OrigContexts:   a.Histograms.Len(),
		BinnedContexts: res.Len(),
		OrigRate:       a.Histograms.Rate(),
		PayloadBytes:   len(c.Payload),
		Blocks:         len(jobs),
		Iterations:     res.Iterations,
	}
	if st.Symbols > 0 {
		st.BinnedRate = res.Cost / float64(st.Symbols)
		st.CodedRate = float64(len(c.Payload)*8) / float64(st.Symbols)
	}
	slog.DebugContext(ctx, "encoded stream",
		"stream", a.Stream, "symbols", st.Symbols, "blocks", st.Blocks, "payload", st.PayloadBytes,
		"orig_rate", st.OrigRate, "binned_rate", st.BinnedRate, "coded_rate", st.CodedRate)
	return c, st, nil
}
