package idn

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/jpfielding/idencomp.go/pkg/compress/rle"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/encoding/protowire"
)

// maxMetadataBytes bounds the plain size of decoded metadata.
const maxMetadataBytes = 1 << 30

// MetadataCodec compresses the context assignment section of a container.
type MetadataCodec uint8

const (
	CodecRaw MetadataCodec = iota
	CodecZstd
	CodecBrotli
	CodecPackBits
)

func (c MetadataCodec) Valid() bool { return c <= CodecPackBits }

func (c MetadataCodec) String() string {
	switch c {
	case CodecRaw:
		return "raw"
	case CodecZstd:
		return "zstd"
	case CodecBrotli:
		return "brotli"
	case CodecPackBits:
		return "packbits"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseMetadataCodec accepts the names printed by String.
func ParseMetadataCodec(name string) (MetadataCodec, error) {
	for c := CodecRaw; c <= CodecPackBits; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown metadata codec %q", ErrConfig, name)
}

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		return enc
	},
}

// zstdDec is shared; DecodeAll is safe for concurrent use.
var zstdDec, _ = zstd.NewReader(nil,
	zstd.WithDecoderConcurrency(1),
	zstd.WithDecoderMaxMemory(maxMetadataBytes),
)

func (c MetadataCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case CodecRaw:
		return data, nil
	case CodecZstd:
		enc := zstdEncPool.Get().(*zstd.Encoder)
		defer zstdEncPool.Put(enc)
		enc.Reset(&buf)
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return nil, fmt.Errorf("zstd encode: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("zstd encode: %w", err)
		}
	case CodecBrotli:
		w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("brotli encode: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("brotli encode: %w", err)
		}
	case CodecPackBits:
		b := protowire.AppendVarint(nil, uint64(len(data)))
		return append(b, rle.Encode(data)...), nil
	default:
		return nil, fmt.Errorf("%w: metadata codec %d", ErrCorruptStream, c)
	}
	return buf.Bytes(), nil
}

func (c MetadataCodec) decompress(data []byte) ([]byte, error) {
	switch c {
	case CodecRaw:
		return data, nil
	case CodecZstd:
		out, err := zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decode: %v", ErrCorruptStream, err)
		}
		return out, nil
	case CodecBrotli:
		out, err := io.ReadAll(io.LimitReader(brotli.NewReader(bytes.NewReader(data)), maxMetadataBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: brotli decode: %v", ErrCorruptStream, err)
		}
		if len(out) > maxMetadataBytes {
			return nil, fmt.Errorf("%w: brotli metadata above %d bytes", ErrCorruptStream, maxMetadataBytes)
		}
		return out, nil
	case CodecPackBits:
		n, k := protowire.ConsumeVarint(data)
		if k < 0 || n > uint64(maxMetadataBytes) {
			return nil, fmt.Errorf("%w: packbits length", ErrCorruptStream)
		}
		out, err := rle.Decode(data[k:], int(n))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: metadata codec %d", ErrCorruptStream, c)
}
