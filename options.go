package strata

import (
	"log/slog"
	"time"

	"github.com/hupe1980/strata/blobstore"
	"github.com/hupe1980/strata/codec"
	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/journal"
	"github.com/hupe1980/strata/phonetic"
)

type options struct {
	codec             codec.Codec
	metricsCollector  MetricsCollector
	logger            *Logger
	journalPath       string
	journalOptions    []func(*journal.Options)
	snapshots         blobstore.BlobStore
	compression       journal.Compression
	encoder           phonetic.Encoder
	clock             func() time.Time
	entityStart       core.ID
	entityMax         core.ID
	nodeStart         core.ID
	nodeMax           core.ID
	checkpointMinWait time.Duration
}

// Option configures Store constructor/open behavior.
type Option func(*options)

// WithCodec configures the codec used for journal records and snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithJournal enables write-ahead logging in the given directory. The journal
// is immutable after the store is opened; it cannot be enabled or disabled at
// runtime.
//
// Example:
//
//	store, _ := strata.Open(ctx,
//	    strata.WithJournal("./journal", func(o *journal.Options) {
//	        o.DurabilityMode = journal.DurabilityGroupCommit
//	        o.GroupCommitInterval = 10 * time.Millisecond
//	    }),
//	)
func WithJournal(path string, optFns ...func(*journal.Options)) Option {
	return func(o *options) {
		o.journalPath = path
		o.journalOptions = optFns
	}
}

// WithSnapshotStore configures the blob store used for snapshots and the
// manifest. When set along with journal auto-checkpoint thresholds
// (AutoCheckpointOps, AutoCheckpointMB), the store saves snapshots and
// truncates the journal automatically when thresholds are exceeded.
//
// Example:
//
//	store, _ := strata.Open(ctx,
//	    strata.WithJournal("./journal", func(o *journal.Options) {
//	        o.AutoCheckpointOps = 10000
//	    }),
//	    strata.WithSnapshotStore(blobstore.NewLocalStore("./data")),
//	)
func WithSnapshotStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.snapshots = bs
	}
}

// WithSnapshotCompression selects the compression applied to snapshot blobs.
// Default is zstd.
func WithSnapshotCompression(c journal.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithPhoneticEncoder configures the encoder behind phonetic alias search.
//
// If nil is passed, phonetic.Default (Soundex) is used.
func WithPhoneticEncoder(enc phonetic.Encoder) Option {
	return func(o *options) {
		o.encoder = enc
	}
}

// WithClock overrides the clock supplying tombstone timestamps. Intended for
// tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithEntityRange bounds the entity id sequence. Sharded deployments must
// hand each store a disjoint range.
func WithEntityRange(start, max core.ID) Option {
	return func(o *options) {
		o.entityStart = start
		o.entityMax = max
	}
}

// WithNodeRange bounds the tree node id sequence, a separate identity space
// from entities.
func WithNodeRange(start, max core.ID) Option {
	return func(o *options) {
		o.nodeStart = start
		o.nodeMax = max
	}
}

// WithCheckpointMinWait sets the minimum time between automatic checkpoints.
// A burst of writes that crosses the auto-checkpoint threshold repeatedly
// still produces at most one snapshot per interval. Default 30s; 0 disables
// the limit.
func WithCheckpointMinWait(d time.Duration) Option {
	return func(o *options) {
		o.checkpointMinWait = d
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &strata.BasicMetricsCollector{}
//	store, _ := strata.Open(ctx, strata.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Writes: %d, Avg latency: %dns\n", stats.WriteCount, stats.WriteAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := strata.NewJSONLogger(slog.LevelInfo)
//	store, _ := strata.Open(ctx, strata.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		compression:       journal.CompressionZstd,
		metricsCollector:  NoopMetricsCollector{},
		logger:            NoopLogger(),
		checkpointMinWait: 30 * time.Second,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
