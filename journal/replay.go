package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/strata/engine"
)

// Replay feeds every mutation recorded since the last checkpoint to the
// callback, in append order. A checkpoint marker mid-file means a crash
// interrupted truncation; the records before it are covered by the snapshot
// taken at that checkpoint and are skipped. A torn final record ends replay
// cleanly, since everything before it is intact.
func (j *Journal) Replay(callback func(m engine.Mutation) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Seek(j.dataOffset, 0); err != nil {
		return err
	}
	reader := bufio.NewReader(j.file)

	type record struct {
		seq     uint64
		payload []byte
	}
	var pending []record

	for {
		kind, seq, payload, err := j.decodeRecordRaw(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal: corrupted at record: %w", err)
		}
		if kind == recordCheckpoint {
			pending = pending[:0]
			continue
		}
		pending = append(pending, record{seq: seq, payload: payload})
	}

	for _, rec := range pending {
		var m engine.Mutation
		if err := j.codec.Unmarshal(rec.payload, &m); err != nil {
			return fmt.Errorf("journal: decode record %d: %w", rec.seq, err)
		}
		if err := callback(m); err != nil {
			return fmt.Errorf("journal: replay record %d: %w", rec.seq, err)
		}
	}

	if _, err := j.file.Seek(0, 2); err != nil {
		return err
	}
	return nil
}
