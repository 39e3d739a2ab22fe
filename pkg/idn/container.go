package idn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/bits"
	"slices"

	"github.com/google/uuid"
	"github.com/jpfielding/idencomp.go/pkg/binning"
	"github.com/jpfielding/idencomp.go/pkg/compress/rans"
	"github.com/jpfielding/idencomp.go/pkg/ctxspec"
	"github.com/jpfielding/idencomp.go/pkg/sequence"
	"github.com/jpfielding/idencomp.go/pkg/util"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	containerMagic   = "IDENCOMP"
	containerVersion = 1
	// maxCount bounds a read length and the symbols of one block.
	maxCount = math.MaxInt32
)

// BlockInfo locates one coded block in the payload.
type BlockInfo struct {
	Bin     uint32
	Symbols uint64
	Offset  uint64
	Length  uint64
}

// Container is one coded stream with everything needed to decode it. It
// is not modified after Encode or ParseContainer returns it.
type Container struct {
	ID       uuid.UUID
	Stream   sequence.StreamType
	Spec     ctxspec.Spec
	Coder    rans.Config
	Checksum uint32
	Codec    MetadataCodec
	// ReadLengths holds the number of symbols of every read, in order.
	ReadLengths []int
	// Assign maps every observed context to its bin.
	Assign  map[uint32]uint32
	Tables  [][]uint32
	Blocks  []BlockInfo
	Payload []byte
}

// Bins is the number of bins K.
func (c *Container) Bins() int { return len(c.Tables) }

// Symbols is the total number of coded symbols.
func (c *Container) Symbols() uint64 {
	n, _ := c.symbols()
	return n
}

// symbols sums the read lengths, failing on a length outside [0, maxCount]
// or a sum that overflows.
func (c *Container) symbols() (uint64, error) {
	var n uint64
	for i, l := range c.ReadLengths {
		if l < 0 || l > maxCount {
			return n, fmt.Errorf("%w: read %d length %d", ErrCorruptStream, i, l)
		}
		if n > math.MaxUint64-uint64(l) {
			return n, fmt.Errorf("%w: read lengths overflow at read %d", ErrCorruptStream, i)
		}
		n += uint64(l)
	}
	return n, nil
}

// checkCounts verifies that the blocks hold exactly the symbols of the reads.
func (c *Container) checkCounts() error {
	total, err := c.symbols()
	if err != nil {
		return err
	}
	var coded uint64
	for i, blk := range c.Blocks {
		if blk.Symbols > maxCount || coded > math.MaxUint64-blk.Symbols {
			return fmt.Errorf("%w: block %d holds %d symbols", ErrCorruptStream, i, blk.Symbols)
		}
		coded += blk.Symbols
	}
	if coded != total {
		return fmt.Errorf("%w: blocks hold %d of %d symbols", ErrCorruptStream, coded, total)
	}
	return nil
}

func (c *Container) lookup(ctx uint32) uint32 {
	if b, ok := c.Assign[ctx]; ok {
		return b
	}
	return binning.FallbackBin
}

// metadata is the codec-compressed section: read lengths and the sparse
// context to bin table sorted by context.
func (c *Container) metadata() []byte {
	var b []byte
	b = protowire.AppendVarint(b, uint64(len(c.ReadLengths)))
	for _, l := range c.ReadLengths {
		b = protowire.AppendVarint(b, uint64(l))
	}
	ctxs := make([]uint32, 0, len(c.Assign))
	for ctx := range c.Assign {
		ctxs = append(ctxs, ctx)
	}
	slices.Sort(ctxs)
	b = protowire.AppendVarint(b, uint64(len(ctxs)))
	var prev uint32
	for _, ctx := range ctxs {
		b = protowire.AppendVarint(b, uint64(ctx-prev))
		b = protowire.AppendVarint(b, uint64(c.Assign[ctx]))
		prev = ctx
	}
	return b
}

// contentID derives the container identifier from everything but itself.
func (c *Container) contentID(meta []byte) uuid.UUID {
	hdr := []byte{byte(c.Stream), c.Coder.ScaleBits, byte(bits.TrailingZeros32(c.Coder.LowerBound))}
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(c.Spec.Tag()))
	hdr = binary.BigEndian.AppendUint32(hdr, c.Checksum)
	return util.ContentUUID(hdr, meta, c.index(), c.Payload)
}

// index serializes the tables and the block index.
func (c *Container) index() []byte {
	var b []byte
	b = protowire.AppendVarint(b, uint64(len(c.Tables)))
	for _, tab := range c.Tables {
		for _, f := range tab {
			b = protowire.AppendVarint(b, uint64(f))
		}
	}
	b = protowire.AppendVarint(b, uint64(len(c.Blocks)))
	for _, blk := range c.Blocks {
		b = protowire.AppendVarint(b, uint64(blk.Bin))
		b = protowire.AppendVarint(b, blk.Symbols)
		b = protowire.AppendVarint(b, blk.Offset)
		b = protowire.AppendVarint(b, blk.Length)
	}
	return b
}

// MarshalBinary lays the container out in its wire format.
func (c *Container) MarshalBinary() ([]byte, error) {
	meta, err := c.Codec.compress(c.metadata())
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, 64+len(meta)+len(c.Payload))
	b = append(b, containerMagic...)
	b = append(b, containerVersion, byte(c.Stream))
	b = binary.BigEndian.AppendUint32(b, uint32(c.Spec.Tag()))
	b = append(b, c.Coder.ScaleBits, byte(bits.TrailingZeros32(c.Coder.LowerBound)))
	b = append(b, c.ID[:]...)
	b = binary.BigEndian.AppendUint32(b, c.Checksum)
	b = append(b, byte(c.Codec))
	b = protowire.AppendBytes(b, meta)
	b = append(b, c.index()...)
	b = protowire.AppendBytes(b, c.Payload)
	return b, nil
}

// WriteTo writes the wire format to w.
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	data, err := c.MarshalBinary()
	if err != nil {
		return 0, err
	}
	cw := &CountingWriter{Writer: w}
	_, err = cw.Write(data)
	return cw.Count.Load(), err
}

// ReadContainer reads a whole container from r.
func ReadContainer(r io.Reader) (*Container, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("idn: read container: %w", err)
	}
	return ParseContainer(data)
}

// ParseContainer decodes and validates the wire format. Malformed input
// fails with ErrCorruptStream, an unknown spec tag with ErrInvalidContextSpec.
func ParseContainer(data []byte) (*Container, error) {
	r := &wireReader{buf: data}
	if !bytes.Equal(r.bytes(len(containerMagic)), []byte(containerMagic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptStream)
	}
	if v := r.u8(); r.err == nil && v != containerVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptStream, v)
	}
	c := &Container{Stream: sequence.StreamType(r.u8())}
	tag := ctxspec.Tag(r.u32())
	c.Coder.ScaleBits = r.u8()
	lb := r.u8()
	copy(c.ID[:], r.bytes(16))
	c.Checksum = r.u32()
	c.Codec = MetadataCodec(r.u8())
	meta := r.lenBytes()
	if r.err != nil {
		return nil, r.err
	}
	if !c.Stream.Valid() {
		return nil, fmt.Errorf("%w: stream type %d", ErrCorruptStream, c.Stream)
	}
	spec, err := ctxspec.FromTag(tag)
	if err != nil {
		return nil, err
	}
	c.Spec = spec
	if lb > 23 {
		return nil, fmt.Errorf("%w: lower bound bits %d", ErrCorruptStream, lb)
	}
	c.Coder.LowerBound = 1 << lb
	alphabet := c.Stream.Alphabet()
	if err := c.Coder.Validate(alphabet); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}

	k := r.count(1 << 24)
	for i := 0; i < k && r.err == nil; i++ {
		tab := make([]uint32, alphabet)
		for s := range tab {
			tab[s] = uint32(r.varint())
		}
		if r.err == nil {
			if _, err := c.Coder.NewTable(tab); err != nil {
				return nil, fmt.Errorf("%w: bin %d: %v", ErrCorruptStream, i, err)
			}
		}
		c.Tables = append(c.Tables, tab)
	}
	n := r.count(len(data))
	var offset uint64
	for i := 0; i < n && r.err == nil; i++ {
		blk := BlockInfo{Bin: uint32(r.varint()), Symbols: r.varint(), Offset: r.varint(), Length: r.varint()}
		if r.err == nil && (blk.Bin >= uint32(k) || blk.Offset != offset) {
			return nil, fmt.Errorf("%w: block %d out of place", ErrCorruptStream, i)
		}
		offset += blk.Length
		c.Blocks = append(c.Blocks, blk)
	}
	c.Payload = r.lenBytes()
	if r.err != nil {
		return nil, r.err
	}
	if offset != uint64(len(c.Payload)) {
		return nil, fmt.Errorf("%w: blocks cover %d of %d payload bytes", ErrCorruptStream, offset, len(c.Payload))
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, len(data)-r.off)
	}

	plain, err := c.Codec.decompress(meta)
	if err != nil {
		return nil, err
	}
	if err := c.parseMetadata(plain); err != nil {
		return nil, err
	}
	if id := c.contentID(plain); id != c.ID {
		return nil, fmt.Errorf("%w: content id %s does not match %s", ErrCorruptStream, id, c.ID)
	}
	if err := c.checkCounts(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) parseMetadata(meta []byte) error {
	r := &wireReader{buf: meta}
	reads := r.count(len(meta))
	c.ReadLengths = make([]int, 0, reads)
	for i := 0; i < reads && r.err == nil; i++ {
		l := r.varint()
		if r.err == nil && l > maxCount {
			return fmt.Errorf("%w: read %d length %d", ErrCorruptStream, i, l)
		}
		c.ReadLengths = append(c.ReadLengths, int(l))
	}
	entries := r.count(len(meta))
	c.Assign = make(map[uint32]uint32, entries)
	var ctx uint64
	for i := 0; i < entries && r.err == nil; i++ {
		ctx += r.varint()
		bin := r.varint()
		if r.err == nil && (ctx >= c.Spec.SpaceSize() || bin >= uint64(len(c.Tables))) {
			return fmt.Errorf("%w: assignment %d -> %d out of range", ErrCorruptStream, ctx, bin)
		}
		c.Assign[uint32(ctx)] = uint32(bin)
	}
	if r.err == nil && r.off != len(meta) {
		return fmt.Errorf("%w: %d trailing metadata bytes", ErrCorruptStream, len(meta)-r.off)
	}
	return r.err
}

// wireReader consumes the container format, keeping the first error.
type wireReader struct {
	buf []byte
	off int
	err error
}

func (r *wireReader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: truncated %s at offset %d", ErrCorruptStream, what, r.off)
	}
}

func (r *wireReader) bytes(n int) []byte {
	if r.err != nil || n < 0 || len(r.buf)-r.off < n {
		r.fail("field")
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *wireReader) u8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *wireReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *wireReader) varint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.buf[r.off:])
	if n < 0 {
		r.fail("varint")
		return 0
	}
	r.off += n
	return v
}

// count reads a length that may not exceed limit.
func (r *wireReader) count(limit int) int {
	v := r.varint()
	if r.err == nil && v > uint64(limit) {
		r.err = fmt.Errorf("%w: count %d above %d", ErrCorruptStream, v, limit)
	}
	if r.err != nil {
		return 0
	}
	return int(v)
}

func (r *wireReader) lenBytes() []byte {
	if r.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.buf[r.off:])
	if n < 0 {
		r.fail("bytes")
		return nil
	}
	r.off += n
	return v
}
