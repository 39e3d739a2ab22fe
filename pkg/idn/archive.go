package idn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
	"google.golang.org/protobuf/encoding/protowire"
)

const archiveMagic = "IDNARCH1"

// Archive stores both streams of a read set. Either stream's context may
// look at the other one since they are decoded together.
type Archive struct {
	Acids     *Container
	Qualities *Container
}

// ArchiveStats pairs the stats of both streams.
type ArchiveStats struct {
	Acids     Stats
	Qualities Stats
}

// EncodeReads codes the acids under acidSpec and the qualities under qualSpec.
func EncodeReads(ctx context.Context, reads []sequence.Read, acidSpec, qualSpec ctxspec.Spec, opts Options) (*Archive, ArchiveStats, error) {
	var (
		a  Archive
		st ArchiveStats
	)
	var err error
	if a.Acids, st.Acids, err = Encode(ctx, sequence.Acids, reads, acidSpec, opts); err != nil {
		return nil, st, fmt.Errorf("idn: acids: %w", err)
	}
	if a.Qualities, st.Qualities, err = Encode(ctx, sequence.Qualities, reads, qualSpec, opts); err != nil {
		return nil, st, fmt.Errorf("idn: qualities: %w", err)
	}
	return &a, st, nil
}

// DecodeReads rebuilds the reads of an archive, stepping both context
// derivers forward together.
func DecodeReads(ctx context.Context, a *Archive) ([]sequence.Read, error) {
	if a.Acids.Stream != sequence.Acids || a.Qualities.Stream != sequence.Qualities {
		return nil, fmt.Errorf("%w: archive streams out of order", ErrCorruptStream)
	}
	if len(a.Acids.ReadLengths) != len(a.Qualities.ReadLengths) {
		return nil, fmt.Errorf("%w: %d acid reads vs %d quality reads",
			ErrCorruptStream, len(a.Acids.ReadLengths), len(a.Qualities.ReadLengths))
	}
	for _, c := range []*Container{a.Acids, a.Qualities} {
		if err := c.checkCounts(); err != nil {
			return nil, fmt.Errorf("idn: %s: %w", c.Stream, err)
		}
	}
	workers := runtime.GOMAXPROCS(0)
	var acids, quals *binStreams
	err := runPool(ctx, 2, 2, func(ctx context.Context, i int) error {
		var err error
		if i == 0 {
			acids, err = decodeBlocks(ctx, a.Acids, workers)
		} else {
			quals, err = decodeBlocks(ctx, a.Qualities, workers)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	reads := make([]sequence.Read, len(a.Acids.ReadLengths))
	acidSyms := make([][]byte, len(reads))
	qualSyms := make([][]byte, len(reads))
	for r, l := range a.Acids.ReadLengths {
		if a.Qualities.ReadLengths[r] != l {
			return nil, fmt.Errorf("%w: read %d length %d vs %d", ErrCorruptStream, r, l, a.Qualities.ReadLengths[r])
		}
		ad := a.Acids.Spec.NewDeriver(l)
		qd := a.Qualities.Spec.NewDeriver(l)
		rd := sequence.Read{Acids: make([]sequence.Acid, l), Qualities: make([]sequence.QualityScore, l)}
		acidSyms[r], qualSyms[r] = make([]byte, l), make([]byte, l)
		for p := 0; p < l; p++ {
			as, err := acids.next(ad.Context())
			if err != nil {
				return nil, fmt.Errorf("read %d position %d: acids: %w", r, p, err)
			}
			qs, err := quals.next(qd.Context())
			if err != nil {
				return nil, fmt.Errorf("read %d position %d: qualities: %w", r, p, err)
			}
			rd.Acids[p], rd.Qualities[p] = sequence.Acid(as), sequence.QualityScore(qs)
			acidSyms[r][p], qualSyms[r][p] = as, qs
			ad.Update(rd.Acids[p], rd.Qualities[p])
			qd.Update(rd.Acids[p], rd.Qualities[p])
		}
		reads[r] = rd
	}
	for _, check := range []func() error{
		acids.drained, quals.drained,
		func() error { return acids.verify(acidSyms) },
		func() error { return quals.verify(qualSyms) },
	} {
		if err := check(); err != nil {
			return nil, err
		}
	}
	return reads, nil
}

// MarshalBinary writes the archive magic and both containers, length prefixed.
func (a *Archive) MarshalBinary() ([]byte, error) {
	b := []byte(archiveMagic)
	for _, c := range []*Container{a.Acids, a.Qualities} {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendBytes(b, data)
	}
	return b, nil
}

// WriteTo writes the archive to w.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	data, err := a.MarshalBinary()
	if err != nil {
		return 0, err
	}
	cw := &CountingWriter{Writer: w}
	_, err = cw.Write(data)
	return cw.Count.Load(), err
}

// ReadArchive reads and validates a whole archive from r.
func ReadArchive(r io.Reader) (*Archive, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("idn: read archive: %w", err)
	}
	return ParseArchive(data)
}

// ParseArchive validates the archive framing and both containers.
func ParseArchive(data []byte) (*Archive, error) {
	if !bytes.HasPrefix(data, []byte(archiveMagic)) {
		return nil, fmt.Errorf("%w: bad archive magic", ErrCorruptStream)
	}
	rest := data[len(archiveMagic):]
	var cs [2]*Container
	for i := range cs {
		v, n := protowire.ConsumeBytes(rest)
		if n < 0 {
			return nil, fmt.Errorf("%w: truncated archive", ErrCorruptStream)
		}
		c, err := ParseContainer(v)
		if err != nil {
			return nil, err
		}
		cs[i] = c
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing archive bytes", ErrCorruptStream, len(rest))
	}
	return &Archive{Acids: cs[0], Qualities: cs[1]}, nil
}
