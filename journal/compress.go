package journal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-record compression algorithm.
type Compression uint8

const (
	// CompressionNone stores payloads raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd block compression (better ratio, slower).
	CompressionZstd Compression = 2
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns the compressed payload, or nil if the input is
// incompressible under LZ4.
func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		return buf[:n], nil

	case CompressionZstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil

	default:
		return nil, fmt.Errorf("journal: unknown compression %d", c)
	}
}

// decompress expands a stored payload to its recorded raw size.
func decompress(data []byte, rawLen int, c Compression) ([]byte, error) {
	out := make([]byte, rawLen)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil

	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(data, out[:0])
		if err != nil {
			return nil, err
		}
		if len(decoded) != rawLen {
			return nil, errors.New("decompressed size mismatch")
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("journal: unknown compression %d", c)
	}
}
