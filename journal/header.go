package journal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var (
	journalMagic   = [4]byte{'S', 'T', 'J', '0'}
	headerVersion  = uint16(1)
	headerFixedLen = 16 // excludes variable codec name bytes
)

type headerInfo struct {
	Compression Compression
	CodecName   string
	HeaderLen   int64
}

// writeHeader writes the self-describing file header:
//
//	[magic:4][version:2][compression:1][codecNameLen:1][reserved:8][codecName]
func writeHeader(w io.Writer, info headerInfo) (int64, error) {
	name := []byte(info.CodecName)
	if len(name) > 255 {
		return 0, fmt.Errorf("journal: codec name too long: %q", info.CodecName)
	}

	buf := make([]byte, 0, headerFixedLen+len(name))
	buf = append(buf, journalMagic[:]...)
	var fixed [12]byte
	binary.LittleEndian.PutUint16(fixed[0:2], headerVersion)
	fixed[2] = byte(info.Compression)
	fixed[3] = byte(len(name))
	// fixed[4:12] reserved
	buf = append(buf, fixed[:]...)
	buf = append(buf, name...)

	if _, err := w.Write(buf); err != nil {
		return 0, fmt.Errorf("journal: write header: %w", err)
	}
	return int64(len(buf)), nil
}

func readHeader(f *os.File) (headerInfo, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return headerInfo{}, fmt.Errorf("journal: seek: %w", err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return headerInfo{}, fmt.Errorf("journal: read header magic: %w", err)
	}
	if magic != journalMagic {
		return headerInfo{}, fmt.Errorf("journal: invalid header magic")
	}

	fixed := make([]byte, headerFixedLen-4)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return headerInfo{}, fmt.Errorf("journal: read header: %w", err)
	}

	version := binary.LittleEndian.Uint16(fixed[0:2])
	if version != headerVersion {
		return headerInfo{}, fmt.Errorf("journal: unsupported header version %d", version)
	}
	compression := Compression(fixed[2])
	nameLen := int(fixed[3])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(f, name); err != nil {
		return headerInfo{}, fmt.Errorf("journal: read codec name: %w", err)
	}

	return headerInfo{
		Compression: compression,
		CodecName:   string(name),
		HeaderLen:   int64(headerFixedLen + nameLen),
	}, nil
}
