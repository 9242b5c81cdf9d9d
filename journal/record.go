package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/strata/engine"
)

// recordKind tags the on-disk record type.
type recordKind uint8

const (
	recordMutation   recordKind = 1
	recordCheckpoint recordKind = 2
)

// Record framing:
//
//	[Kind:1][SeqNum:8][RawLen:4][StoredLen:4][CRC:4][payload:StoredLen]
//
// RawLen is the uncompressed payload size. StoredLen == RawLen means the
// payload is stored raw; a smaller StoredLen means it is compressed with the
// algorithm recorded in the file header. The CRC (IEEE) covers the stored
// payload bytes so torn or bit-rotted records are detected before decoding.
const recordHeaderLen = 1 + 8 + 4 + 4 + 4

// encodeRecord frames and writes one record. Caller holds j.mu. m may be nil
// for payload-free kinds.
func (j *Journal) encodeRecord(kind recordKind, seq uint64, m *engine.Mutation) error {
	var payload []byte
	if m != nil {
		b, err := j.codec.Marshal(m)
		if err != nil {
			return err
		}
		payload = b
	}

	rawLen := len(payload)
	stored := payload
	if rawLen > 0 && j.compression != CompressionNone {
		c, err := compress(payload, j.compression)
		if err != nil {
			return err
		}
		// Keep incompressible payloads raw.
		if c != nil && len(c) < rawLen {
			stored = c
		}
	}

	var hdr [recordHeaderLen]byte
	hdr[0] = byte(kind)
	binary.LittleEndian.PutUint64(hdr[1:9], seq)
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(rawLen))       //nolint:gosec
	binary.LittleEndian.PutUint32(hdr[13:17], uint32(len(stored))) //nolint:gosec
	binary.LittleEndian.PutUint32(hdr[17:21], crc32.ChecksumIEEE(stored))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return err
	}
	if len(stored) > 0 {
		if _, err := j.writer.Write(stored); err != nil {
			return err
		}
	}
	return nil
}

// decodeRecordRaw reads one framed record and returns its decompressed
// payload without decoding it. io.EOF (or an unexpected EOF from a torn
// tail) is returned as is.
func (j *Journal) decodeRecordRaw(r io.Reader) (recordKind, uint64, []byte, error) {
	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, nil, err
	}

	kind := recordKind(hdr[0])
	seq := binary.LittleEndian.Uint64(hdr[1:9])
	rawLen := binary.LittleEndian.Uint32(hdr[9:13])
	storedLen := binary.LittleEndian.Uint32(hdr[13:17])
	sum := binary.LittleEndian.Uint32(hdr[17:21])

	if kind != recordMutation && kind != recordCheckpoint {
		return 0, 0, nil, fmt.Errorf("journal: invalid record kind %d", kind)
	}
	if storedLen > rawLen {
		return 0, 0, nil, fmt.Errorf("journal: invalid record framing (stored %d > raw %d)", storedLen, rawLen)
	}

	var payload []byte
	if storedLen > 0 {
		stored := make([]byte, storedLen)
		if _, err := io.ReadFull(r, stored); err != nil {
			return 0, 0, nil, err
		}
		if crc32.ChecksumIEEE(stored) != sum {
			return 0, 0, nil, fmt.Errorf("journal: record %d checksum mismatch", seq)
		}
		if storedLen < rawLen {
			b, err := decompress(stored, int(rawLen), j.compression)
			if err != nil {
				return 0, 0, nil, fmt.Errorf("journal: record %d: %w", seq, err)
			}
			payload = b
		} else {
			payload = stored
		}
	}
	return kind, seq, payload, nil
}
