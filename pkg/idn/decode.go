package idn

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"runtime"
	"time"

	"github.com/jpfielding/idencomp.go/pkg/binning"
	"github.com/jpfielding/idencomp.go/pkg/compress/rans"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
)

// binStreams holds the decoded symbols of every bin and a read cursor per bin.
type binStreams struct {
	c    *Container
	syms [][]byte
	pos  []int
}

// decodeBlocks decodes every block of c on the worker pool and joins the
// blocks of each bin in block order. Any failing block fails the whole call.
func decodeBlocks(ctx context.Context, c *Container, workers int) (*binStreams, error) {
	tables := make([]*rans.FrequencyTable, c.Bins())
	for b, freqs := range c.Tables {
		t, err := c.Coder.NewTable(freqs)
		if err != nil {
			return nil, fmt.Errorf("%w: bin %d: %v", ErrCorruptStream, b, err)
		}
		tables[b] = t
	}
	out := make([][]byte, len(c.Blocks))
	err := runPool(ctx, workers, len(c.Blocks), func(_ context.Context, i int) error {
		blk := c.Blocks[i]
		if blk.Bin >= uint32(len(tables)) || blk.Offset+blk.Length > uint64(len(c.Payload)) {
			return fmt.Errorf("%w: block %d out of range", ErrCorruptStream, i)
		}
		data := c.Payload[blk.Offset : blk.Offset+blk.Length]
		syms, err := rans.DecodeBlock(c.Coder, tables[blk.Bin], data, int(blk.Symbols), make([]byte, 0, min(blk.Symbols, 1<<20)))
		if err != nil {
			return fmt.Errorf("idn: block %d (bin %d): %w", i, blk.Bin, err)
		}
		out[i] = syms
		return nil
	})
	if err != nil {
		return nil, err
	}

	bs := &binStreams{c: c, syms: make([][]byte, c.Bins()), pos: make([]int, c.Bins())}
	for i, blk := range c.Blocks {
		bs.syms[blk.Bin] = append(bs.syms[blk.Bin], out[i]...)
	}
	return bs, nil
}

// next returns the next symbol of the bin owning context ctx.
func (bs *binStreams) next(ctx uint32) (byte, error) {
	b := bs.c.lookup(ctx)
	if b == binning.FallbackBin {
		return 0, fmt.Errorf("%w: context %#x has no bin", ErrCorruptStream, ctx)
	}
	if bs.pos[b] >= len(bs.syms[b]) {
		return 0, fmt.Errorf("%w: bin %d exhausted", ErrCorruptStream, b)
	}
	sym := bs.syms[b][bs.pos[b]]
	bs.pos[b]++
	return sym, nil
}

// drained reports unconsumed symbols.
func (bs *binStreams) drained() error {
	for b, syms := range bs.syms {
		if bs.pos[b] != len(syms) {
			return fmt.Errorf("%w: bin %d has %d unused symbols", ErrCorruptStream, b, len(syms)-bs.pos[b])
		}
	}
	return nil
}

// verify checks the stream checksum of the reassembled reads.
func (bs *binStreams) verify(reads [][]byte) error {
	h := crc32.NewIEEE()
	for _, r := range reads {
		h.Write(r)
	}
	if sum := h.Sum32(); sum != bs.c.Checksum {
		return fmt.Errorf("%w: checksum %#08x, want %#08x", ErrCorruptStream, sum, bs.c.Checksum)
	}
	return nil
}

// NeedsAux reports whether decoding c requires the other stream of the reads.
func (c *Container) NeedsAux() bool {
	if c.Stream == sequence.Acids {
		return c.Spec.UsesQualities()
	}
	return c.Spec.UsesAcids()
}

// Decode reconstructs the coded stream of every read. aux is the other
// stream per read and is only consulted when NeedsAux is true. On error no
// partial result is returned.
func Decode(ctx context.Context, c *Container, aux [][]byte) ([][]byte, error) {
	return DecodeWorkers(ctx, c, aux, runtime.GOMAXPROCS(0))
}

// DecodeWorkers is Decode with an explicit pool size.
func DecodeWorkers(ctx context.Context, c *Container, aux [][]byte, workers int) ([][]byte, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: %d workers", ErrConfig, workers)
	}
	if err := c.checkCounts(); err != nil {
		return nil, err
	}
	needAux := c.NeedsAux()
	if needAux {
		if len(aux) != len(c.ReadLengths) {
			return nil, fmt.Errorf("%w: %s decoding needs the other stream of %d reads, got %d",
				ErrConfig, c.Spec, len(c.ReadLengths), len(aux))
		}
		otherAlphabet := sequence.Acids.Alphabet()
		if c.Stream == sequence.Acids {
			otherAlphabet = sequence.Qualities.Alphabet()
		}
		for i, l := range c.ReadLengths {
			if len(aux[i]) != l {
				return nil, fmt.Errorf("%w: auxiliary read %d has %d symbols, want %d", ErrConfig, i, len(aux[i]), l)
			}
			for _, s := range aux[i] {
				if int(s) >= otherAlphabet {
					return nil, fmt.Errorf("%w: auxiliary read %d has symbol %d", ErrConfig, i, s)
				}
			}
		}
	}
	start := time.Now()
	bs, err := decodeBlocks(ctx, c, workers)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(c.ReadLengths))
	for r, l := range c.ReadLengths {
		d := c.Spec.NewDeriver(l)
		syms := make([]byte, l)
		for p := 0; p < l; p++ {
			sym, err := bs.next(d.Context())
			if err != nil {
				return nil, fmt.Errorf("read %d position %d: %w", r, p, err)
			}
			syms[p] = sym
			var other byte
			if needAux {
				other = aux[r][p]
			}
			if c.Stream == sequence.Acids {
				d.Update(sequence.Acid(sym), sequence.QualityScore(other))
			} else {
				d.Update(sequence.Acid(other), sequence.QualityScore(sym))
			}
		}
		out[r] = syms
	}
	if err := bs.drained(); err != nil {
		return nil, err
	}
	if err := bs.verify(out); err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "decoded stream",
		"stream", c.Stream, "reads", len(out), "blocks", len(c.Blocks), "elapsed", time.Since(start))
	return out, nil
}
