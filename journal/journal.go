// Package journal provides write-ahead logging of committed mutations for
// durability and crash recovery.
//
// Every unit of work the engine commits is appended as one logical record.
// Replaying the record stream against an empty engine (or a restored
// snapshot) reproduces the exact table state, tombstone timestamps and id
// sequences included.
//
// Features:
//   - Configurable fsync behavior (async, group commit, sync)
//   - Optional per-record LZ4 or zstd compression
//   - Self-describing header recording codec and compression
//   - Checkpoint support for log truncation after snapshots
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/strata/codec"
	"github.com/hupe1980/strata/engine"
)

// DurabilityMode defines the fsync behavior for journal writes.
type DurabilityMode int

const (
	// DurabilityAsync never fsyncs on append. Fastest, but a crash may lose
	// recently acknowledged writes.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit batches fsync across appends, amortizing its
	// cost. The default for most workloads.
	DurabilityGroupCommit

	// DurabilitySync fsyncs after every append. Slowest, strongest
	// guarantee.
	DurabilitySync
)

// Options configures a Journal.
type Options struct {
	// Path is the directory where the journal file is stored.
	Path string

	// Codec encodes mutation payloads. Existing files select their codec by
	// the name recorded in the header; Codec only applies to new files.
	Codec codec.Codec

	// Compression applies per record. Existing files keep whatever the
	// header records.
	Compression Compression

	// DurabilityMode controls fsync behavior. Default is group commit.
	DurabilityMode DurabilityMode

	// GroupCommitInterval bounds how long an append may wait for the
	// background fsync in group commit mode. Default 10ms.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps fsyncs immediately once this many appends are
	// pending. Default 100.
	GroupCommitMaxOps int

	// AutoCheckpointOps triggers the checkpoint callback after N appended
	// records. 0 disables the operation threshold.
	AutoCheckpointOps int

	// AutoCheckpointMB triggers the checkpoint callback once the file
	// exceeds N megabytes. 0 disables the size threshold.
	AutoCheckpointMB int
}

// DefaultOptions returns the default journal options.
var DefaultOptions = Options{
	Path:                ".",
	Compression:         CompressionNone,
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	GroupCommitMaxOps:   100,
	AutoCheckpointOps:   10000,
	AutoCheckpointMB:    100,
}

// Journal is an append-only log of committed mutations. It implements
// engine.Journal.
type Journal struct {
	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	filePath    string
	codec       codec.Codec
	compression Compression
	seqNum      uint64
	dataOffset  int64

	durabilityMode      DurabilityMode
	groupCommitInterval time.Duration
	groupCommitMaxOps   int
	groupCommitTicker   *time.Ticker
	groupCommitStopCh   chan struct{}
	groupCommitPending  int
	groupCommitWg       sync.WaitGroup
	syncCond            *sync.Cond
	persistedSeqNum     uint64

	autoCheckpointOps int
	autoCheckpointMB  int
	committedOps      int
	checkpointFunc    func() error
}

// Open creates or reopens the journal in the configured directory.
func Open(optFns ...func(o *Options)) (*Journal, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if err := os.MkdirAll(opts.Path, 0o750); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	filePath := filepath.Join(opts.Path, "strata.journal")

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path is configurable
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("journal: stat file: %w", err)
	}

	j := &Journal{
		file:                file,
		filePath:            filePath,
		codec:               opts.Codec,
		compression:         opts.Compression,
		durabilityMode:      opts.DurabilityMode,
		groupCommitInterval: opts.GroupCommitInterval,
		groupCommitMaxOps:   opts.GroupCommitMaxOps,
		autoCheckpointOps:   opts.AutoCheckpointOps,
		autoCheckpointMB:    opts.AutoCheckpointMB,
	}
	j.syncCond = sync.NewCond(&j.mu)

	if st.Size() == 0 {
		hdrLen, err := writeHeader(file, headerInfo{Compression: j.compression, CodecName: j.codec.Name()})
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		j.dataOffset = hdrLen
	} else {
		info, err := readHeader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		c, ok := codec.ByName(info.CodecName)
		if !ok {
			_ = file.Close()
			return nil, fmt.Errorf("journal: unknown codec %q in header", info.CodecName)
		}
		j.codec = c
		j.compression = info.Compression
		j.dataOffset = info.HeaderLen
	}

	if err := j.scanForSeqNum(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("journal: scan: %w", err)
	}

	if j.durabilityMode == DurabilityGroupCommit && j.groupCommitInterval > 0 {
		j.groupCommitStopCh = make(chan struct{})
		j.groupCommitTicker = time.NewTicker(j.groupCommitInterval)
		j.groupCommitWg.Add(1)
		go j.groupCommitWorker()
	}

	return j, nil
}

// FilePath returns the path to the journal file.
func (j *Journal) FilePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.filePath
}

// Append writes one mutation record and applies the configured durability
// mode before returning.
func (j *Journal) Append(m engine.Mutation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seqNum++
	if err := j.encodeRecord(recordMutation, j.seqNum, &m); err != nil {
		return fmt.Errorf("journal: encode record: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	j.committedOps++
	if err := j.syncIfNeeded(); err != nil {
		return err
	}
	return j.maybeCheckpointLocked()
}

// syncIfNeeded performs fsync according to the configured durability mode.
// Caller holds j.mu.
func (j *Journal) syncIfNeeded() error {
	switch j.durabilityMode {
	case DurabilityAsync:
		return nil

	case DurabilitySync:
		return j.file.Sync()

	case DurabilityGroupCommit:
		j.groupCommitPending++
		targetSeq := j.seqNum
		if j.groupCommitPending >= j.groupCommitMaxOps {
			return j.doGroupCommit()
		}
		// Wait releases j.mu so the background worker can sync.
		for j.persistedSeqNum < targetSeq {
			j.syncCond.Wait()
		}
		return nil

	default:
		return nil
	}
}

// doGroupCommit fsyncs and wakes waiting appenders. Caller holds j.mu.
func (j *Journal) doGroupCommit() error {
	if j.groupCommitPending == 0 {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	j.groupCommitPending = 0
	j.persistedSeqNum = j.seqNum
	j.syncCond.Broadcast()
	return nil
}

func (j *Journal) groupCommitWorker() {
	defer j.groupCommitWg.Done()

	for {
		select {
		case <-j.groupCommitStopCh:
			j.mu.Lock()
			_ = j.doGroupCommit()
			j.mu.Unlock()
			return

		case <-j.groupCommitTicker.C:
			j.mu.Lock()
			_ = j.doGroupCommit()
			j.mu.Unlock()
		}
	}
}

// scanForSeqNum reads the existing record stream to find the highest sequence
// number, then positions the writer at the end of the file.
func (j *Journal) scanForSeqNum() error {
	if _, err := j.file.Seek(j.dataOffset, 0); err != nil {
		return err
	}

	reader := bufio.NewReader(j.file)
	var maxSeq uint64
	for {
		kind, seq, _, err := j.decodeRecordRaw(reader)
		if err != nil {
			// EOF or torn tail from a crash; everything before it is intact.
			break
		}
		_ = kind
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	j.seqNum = maxSeq

	if _, err := j.file.Seek(0, 2); err != nil {
		return err
	}
	j.writer = bufio.NewWriter(j.file)
	return nil
}

// Checkpoint writes a checkpoint marker, fsyncs and truncates the journal.
// Call it after the state ahead of the journal has been snapshotted.
func (j *Journal) Checkpoint() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.checkpointLocked()
}

func (j *Journal) checkpointLocked() error {
	j.seqNum++
	if err := j.encodeRecord(recordCheckpoint, j.seqNum, nil); err != nil {
		return fmt.Errorf("journal: encode checkpoint: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	// Checkpoint is an explicit durability boundary.
	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.truncate()
}

// truncate resets the file to a fresh header. Caller holds j.mu.
func (j *Journal) truncate() error {
	if err := j.file.Close(); err != nil {
		return err
	}
	file, err := os.OpenFile(j.filePath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600) //nolint:gosec // G304: path is configurable
	if err != nil {
		return fmt.Errorf("journal: truncate: %w", err)
	}
	j.file = file

	hdrLen, err := writeHeader(file, headerInfo{Compression: j.compression, CodecName: j.codec.Name()})
	if err != nil {
		_ = file.Close()
		return err
	}
	j.dataOffset = hdrLen
	j.writer = bufio.NewWriter(file)
	j.seqNum = 0
	j.persistedSeqNum = 0
	j.groupCommitPending = 0
	return nil
}

// SetCheckpointCallback sets the function invoked when an auto-checkpoint
// threshold is crossed, typically the store's snapshot routine.
func (j *Journal) SetCheckpointCallback(fn func() error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.checkpointFunc = fn
}

// maybeCheckpointLocked fires the checkpoint callback once a threshold is
// crossed. Caller holds j.mu.
func (j *Journal) maybeCheckpointLocked() error {
	trigger := j.autoCheckpointOps > 0 && j.committedOps >= j.autoCheckpointOps
	if !trigger && j.autoCheckpointMB > 0 {
		if st, err := j.file.Stat(); err == nil {
			trigger = st.Size()/(1024*1024) >= int64(j.autoCheckpointMB)
		}
	}
	if !trigger || j.checkpointFunc == nil {
		return nil
	}
	j.committedOps = 0

	// The callback snapshots the store and calls Checkpoint, so it must run
	// without the journal lock.
	j.mu.Unlock()
	err := j.checkpointFunc()
	j.mu.Lock()
	return err
}

// Close flushes pending records, performs a final fsync and closes the file.
// The journal is unusable afterwards. Close is idempotent.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	if j.groupCommitTicker != nil {
		close(j.groupCommitStopCh)
		j.mu.Unlock()
		j.groupCommitWg.Wait()
		j.mu.Lock()
		j.groupCommitTicker.Stop()
		j.groupCommitTicker = nil
	}

	if j.writer != nil {
		if err := j.writer.Flush(); err != nil {
			return fmt.Errorf("journal: flush: %w", err)
		}
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Len returns the number of records currently in the journal. Intended for
// tests.
func (j *Journal) Len() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	pos, err := j.file.Seek(0, 1)
	if err != nil {
		return 0, err
	}
	if _, err := j.file.Seek(j.dataOffset, 0); err != nil {
		return 0, err
	}

	reader := bufio.NewReader(j.file)
	count := 0
	for {
		if _, _, _, err := j.decodeRecordRaw(reader); err != nil {
			break
		}
		count++
	}

	if _, err := j.file.Seek(pos, 0); err != nil {
		return count, err
	}
	return count, nil
}
