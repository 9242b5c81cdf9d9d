// Package strata provides an embedded versioned entity-property-graph store
// for Go.
//
// Strata keeps every row of every table as an append-only version chain: a
// write never overwrites, it tombstones the old version and inserts a new
// one, so point-in-time history stays queryable. On top of that core it
// offers production-ready features including:
//
//   - Entities with flags, scoped properties and saturating counters
//   - Unique aliases with hash, prefix and phonetic lookup indexes
//   - Bidirectional ordered relationships between entities
//   - Directed trees with compare-and-swap node updates
//   - Non-unique ordered name lists
//   - Namespacing of every row by a ctx discriminator
//   - Write-ahead logging with group commit for durability
//   - Snapshots to pluggable blob stores (local mmap, MinIO, S3+DynamoDB)
//   - Automatic checkpointing with rate limiting
//
// # Quick Start
//
// Open a durable store and create an entity with an alias:
//
//	ctx := context.Background()
//	store, err := strata.Open(ctx,
//	    strata.WithJournal("./journal"),
//	    strata.WithSnapshotStore(blobstore.NewLocalStore("./data")),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer store.Close()
//
//	ent, err := store.CreateEntity(ctx, 1, 0)
//	if err != nil {
//	    panic(err)
//	}
//	created, err := store.SetAlias(ctx, ent.ID, 1, "alice", core.AppendPos, 0)
//
// Look the alias up later, or search around it:
//
//	hit, ok := store.LookupAlias(ctx, "alice", 1)
//	hits := store.SearchPrefix(ctx, "ali", 1, 10, "")
//	similar := store.SearchPhonetic(ctx, "allyce", 1, 10)
//
// # Durability
//
// Every committed mutation is appended to the journal before the call
// returns; fsync behavior is configurable via journal.Options. Reopening a
// store restores the newest snapshot from the blob store and replays the
// journal suffix on top, reproducing tombstone timestamps and id sequences
// exactly.
package strata

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/strata/blobstore"
	"github.com/hupe1980/strata/codec"
	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/engine"
	"github.com/hupe1980/strata/journal"
	"github.com/hupe1980/strata/manifest"
	"github.com/hupe1980/strata/model"
)

// Store is a versioned entity-property-graph database. All exported methods
// are safe for concurrent use.
type Store struct {
	mu          sync.Mutex // protects autoCheckpoint
	engine      *engine.Engine
	journal     *journal.Journal
	snapshots   blobstore.BlobStore
	manifests   *manifest.Store
	codec       codec.Codec
	compression journal.Compression
	metrics     MetricsCollector
	logger      *Logger
	limiter     *rate.Limiter
}

// Open creates or reopens a store.
//
// When a snapshot store is configured, the newest snapshot is restored first;
// when a journal is configured, the mutations recorded after that snapshot
// are replayed on top. The two are loaded concurrently.
func Open(ctx context.Context, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	c := opts.codec
	if c == nil {
		c = codec.Default
	}

	eng, err := engine.New(engine.Config{
		EntityStart: opts.entityStart,
		EntityMax:   opts.entityMax,
		NodeStart:   opts.nodeStart,
		NodeMax:     opts.nodeMax,
		Encoder:     opts.encoder,
		Clock:       opts.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}

	s := &Store{
		engine:      eng,
		snapshots:   opts.snapshots,
		codec:       c,
		compression: opts.compression,
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
	}
	if opts.checkpointMinWait > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.checkpointMinWait), 1)
	}

	var (
		j    *journal.Journal
		snap *engine.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	if opts.journalPath != "" {
		g.Go(func() error {
			journalOptFns := append([]func(*journal.Options){
				func(o *journal.Options) {
					o.Path = opts.journalPath
					o.Codec = c
				},
			}, opts.journalOptions...)

			var err error
			j, err = journal.Open(journalOptFns...)
			if err != nil {
				return fmt.Errorf("strata: open journal: %w", err)
			}
			return nil
		})
	}
	if opts.snapshots != nil {
		s.manifests = manifest.NewStore(opts.snapshots, c)
		g.Go(func() error {
			m, err := s.manifests.Load(gctx)
			if err != nil {
				return fmt.Errorf("strata: load manifest: %w", err)
			}
			snap, err = loadSnapshot(gctx, opts.snapshots, m)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if j != nil {
			_ = j.Close()
		}
		return nil, err
	}

	if snap != nil {
		eng.Restore(snap)
	}

	if j != nil {
		start := time.Now()
		replayed := 0
		err := j.Replay(func(m engine.Mutation) error {
			replayed++
			return eng.Apply(m)
		})
		s.logger.LogRecovery(ctx, replayed, err)
		if err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("strata: replay journal: %w", err)
		}
		s.metrics.RecordRecovery(replayed, time.Since(start))

		s.journal = j
		eng.SetJournal(j)
		j.SetCheckpointCallback(s.autoCheckpoint)
	}

	return s, nil
}

// autoCheckpoint runs when the journal crosses an auto-checkpoint threshold.
// The rate limiter keeps write bursts from snapshotting back to back.
func (s *Store) autoCheckpoint() error {
	if s.snapshots == nil {
		// No snapshot store configured, checkpointing is manual.
		return nil
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return nil
	}

	// The triggering append still holds the engine write lock; dumping inline
	// would self-deadlock. Snapshot in the background instead.
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.snapshot(context.Background()); err != nil {
			s.logger.Error("auto-checkpoint failed", "error", err)
		}
	}()
	return nil
}

// Checkpoint truncates the journal. Call it after Snapshot when managing
// snapshots manually; Snapshot itself already checkpoints.
func (s *Store) Checkpoint() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Checkpoint()
}

// Close flushes and closes the journal. The store is unusable afterwards.
func (s *Store) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// ---- Entities ----

// CreateEntity mints a fresh entity id and inserts its live version.
func (s *Store) CreateEntity(ctx context.Context, c core.Ctx, flags core.Flags) (model.Entity, error) {
	start := time.Now()
	ent, err := s.engine.CreateEntity(c, flags)
	err = translateError(err)
	s.metrics.RecordWrite("create_entity", time.Since(start), err)
	s.logger.LogWrite(ctx, "create_entity", ent.ID, err)
	return ent, err
}

// GetEntity returns the live entity version, if any.
func (s *Store) GetEntity(id core.ID, c core.Ctx) (model.Entity, bool) {
	return s.engine.GetEntity(id, c)
}

// EntityHistory iterates all versions of an entity, oldest first.
func (s *Store) EntityHistory(id core.ID) iter.Seq[model.Version[model.Entity]] {
	return s.engine.EntityHistory(id)
}

// SetEntityFlags adds and clears flag bits on the live entity version and
// returns the resulting flags.
func (s *Store) SetEntityFlags(ctx context.Context, id core.ID, c core.Ctx, add, clear core.Flags) (core.Flags, error) {
	start := time.Now()
	flags, err := s.engine.SetEntityFlags(id, c, add, clear)
	err = translateError(err)
	s.metrics.RecordWrite("set_entity_flags", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_entity_flags", id, err)
	return flags, err
}

// RemoveEntity tombstones the entity itself. Dependent rows survive; use
// RemoveEntityEstate for a cascade.
func (s *Store) RemoveEntity(ctx context.Context, id core.ID, c core.Ctx) error {
	start := time.Now()
	err := translateError(s.engine.RemoveEntity(id, c))
	s.metrics.RecordWrite("remove_entity", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_entity", id, err)
	return err
}

// RemoveEntityEstate tombstones the entity and every row that hangs off it:
// properties, aliases with their lookup indexes, names, and both directions
// of every relationship.
func (s *Store) RemoveEntityEstate(ctx context.Context, id core.ID, c core.Ctx) error {
	start := time.Now()
	err := translateError(s.engine.RemoveEntityEstate(id, c))
	s.metrics.RecordWrite("remove_entity_estate", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_entity_estate", id, err)
	return err
}

// ---- Properties ----

// SetProperty writes the property in the given namespace, tombstoning any
// previous live version. Returns true when the slot was newly created, false
// when an existing version was replaced.
func (s *Store) SetProperty(ctx context.Context, base core.ID, c core.Ctx, value model.Value, flags core.Flags) (bool, error) {
	start := time.Now()
	created, err := s.engine.SetProperty(base, c, value, flags)
	err = translateError(err)
	s.metrics.RecordWrite("set_property", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_property", base, err)
	return created, err
}

// GetProperty returns the live property version, if any.
func (s *Store) GetProperty(base core.ID, c core.Ctx) (model.Property, bool) {
	return s.engine.GetProperty(base, c)
}

// ListProperties returns the live properties of base, optionally filtered to
// the given namespaces.
func (s *Store) ListProperties(base core.ID, ctxs ...core.Ctx) []*model.Property {
	return s.engine.ListProperties(base, ctxs...)
}

// PropertyHistory iterates all versions of a property slot, oldest first.
func (s *Store) PropertyHistory(base core.ID, c core.Ctx) iter.Seq[model.Version[model.Property]] {
	return s.engine.PropertyHistory(base, c)
}

// IncrementProperty adds delta to a numeric property and returns the new
// value. With a limit the counter saturates instead of crossing it.
func (s *Store) IncrementProperty(ctx context.Context, base core.ID, c core.Ctx, delta int64, limit *int64) (int64, error) {
	start := time.Now()
	val, err := s.engine.IncrementProperty(base, c, delta, limit)
	err = translateError(err)
	s.metrics.RecordWrite("increment_property", time.Since(start), err)
	s.logger.LogWrite(ctx, "increment_property", base, err)
	return val, err
}

// RemoveProperty tombstones the live property version.
func (s *Store) RemoveProperty(ctx context.Context, base core.ID, c core.Ctx) error {
	start := time.Now()
	err := translateError(s.engine.RemoveProperty(base, c))
	s.metrics.RecordWrite("remove_property", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_property", base, err)
	return err
}

// SetPropertyFlags adds and clears flag bits on the live property version.
func (s *Store) SetPropertyFlags(ctx context.Context, base core.ID, c core.Ctx, add, clear core.Flags) (core.Flags, error) {
	start := time.Now()
	flags, err := s.engine.SetPropertyFlags(base, c, add, clear)
	err = translateError(err)
	s.metrics.RecordWrite("set_property_flags", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_property_flags", base, err)
	return flags, err
}

// ---- Aliases ----

// SetAlias claims value for base in the namespace and indexes it for exact,
// prefix and phonetic lookup, as one atomic unit. Returns true when the alias
// was newly created, false when base already held it. A value held by a
// different owner yields *AliasCollisionError.
func (s *Store) SetAlias(ctx context.Context, base core.ID, c core.Ctx, value string, pos core.Pos, flags core.Flags) (bool, error) {
	start := time.Now()
	created, err := s.engine.SetAlias(base, c, value, pos, flags)
	err = translateError(err)
	s.metrics.RecordWrite("set_alias", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_alias", base, err)
	return created, err
}

// LookupAlias resolves an exact alias value to its owner.
func (s *Store) LookupAlias(ctx context.Context, value string, c core.Ctx) (model.LookupHit, bool) {
	start := time.Now()
	hit, ok := s.engine.LookupAlias(value, c)
	s.metrics.RecordLookup(time.Since(start), nil)
	hits := 0
	if ok {
		hits = 1
	}
	s.logger.LogLookup(ctx, "lookup_alias", hits)
	return hit, ok
}

// ListAliases returns the live aliases of base in position order.
func (s *Store) ListAliases(base core.ID, c core.Ctx, fromPos core.Pos, limit int) []model.Alias {
	return s.engine.ListAliases(base, c, fromPos, limit)
}

// AliasHistory iterates all alias versions of base, oldest first.
func (s *Store) AliasHistory(base core.ID, c core.Ctx) iter.Seq[model.Version[model.Alias]] {
	return s.engine.AliasHistory(base, c)
}

// RemoveAlias tombstones the alias and its lookup index rows as one atomic
// unit.
func (s *Store) RemoveAlias(ctx context.Context, base core.ID, c core.Ctx, value string) error {
	start := time.Now()
	err := translateError(s.engine.RemoveAlias(base, c, value))
	s.metrics.RecordWrite("remove_alias", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_alias", base, err)
	return err
}

// ReorderAlias moves the alias to a new position among its owner's aliases.
func (s *Store) ReorderAlias(ctx context.Context, base core.ID, c core.Ctx, value string, pos core.Pos) error {
	start := time.Now()
	err := translateError(s.engine.ReorderAlias(base, c, value, pos))
	s.metrics.RecordWrite("reorder_alias", time.Since(start), err)
	s.logger.LogWrite(ctx, "reorder_alias", base, err)
	return err
}

// SetAliasFlags adds and clears flag bits on the alias and mirrors the result
// onto its lookup index rows.
func (s *Store) SetAliasFlags(ctx context.Context, base core.ID, c core.Ctx, value string, add, clear core.Flags) (core.Flags, error) {
	start := time.Now()
	flags, err := s.engine.SetAliasFlags(base, c, value, add, clear)
	err = translateError(err)
	s.metrics.RecordWrite("set_alias_flags", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_alias_flags", base, err)
	return flags, err
}

// SearchPrefix returns up to limit aliases starting with prefix, ordered by
// value. Pass the last returned value as startAfter to page.
func (s *Store) SearchPrefix(ctx context.Context, prefix string, c core.Ctx, limit int, startAfter string) []model.LookupHit {
	start := time.Now()
	hits := s.engine.SearchPrefix(prefix, c, limit, startAfter)
	s.metrics.RecordLookup(time.Since(start), nil)
	s.logger.LogLookup(ctx, "search_prefix", len(hits))
	return hits
}

// SearchPhonetic returns up to limit aliases that sound like value.
func (s *Store) SearchPhonetic(ctx context.Context, value string, c core.Ctx, limit int) []model.LookupHit {
	start := time.Now()
	hits := s.engine.SearchPhonetic(value, c, limit)
	s.metrics.RecordLookup(time.Since(start), nil)
	s.logger.LogLookup(ctx, "search_phonetic", len(hits))
	return hits
}

// ---- Relationships ----

// CreateRelationship links base to rel in the namespace, inserting the
// forward and backward rows as one atomic unit.
func (s *Store) CreateRelationship(ctx context.Context, base, rel core.ID, c core.Ctx, fwdPos, revPos core.Pos, flags core.Flags) error {
	start := time.Now()
	err := translateError(s.engine.CreateRelationship(base, rel, c, fwdPos, revPos, flags))
	s.metrics.RecordWrite("create_relationship", time.Since(start), err)
	s.logger.LogWrite(ctx, "create_relationship", base, err)
	return err
}

// GetRelationship returns one direction of a live relationship, if any.
func (s *Store) GetRelationship(base, rel core.ID, c core.Ctx, forward bool) (model.Relationship, bool) {
	return s.engine.GetRelationship(base, rel, c, forward)
}

// ListRelationships returns the live relationships of id in one direction, in
// position order.
func (s *Store) ListRelationships(id core.ID, c core.Ctx, forward bool, fromPos core.Pos, limit int) []model.Relationship {
	return s.engine.ListRelationships(id, c, forward, fromPos, limit)
}

// RelationshipHistory iterates all relationship versions of id in one
// direction, oldest first.
func (s *Store) RelationshipHistory(id core.ID, c core.Ctx, forward bool) iter.Seq[model.Version[model.Relationship]] {
	return s.engine.RelationshipHistory(id, c, forward)
}

// RemoveRelationship tombstones both directions as one atomic unit.
func (s *Store) RemoveRelationship(ctx context.Context, base, rel core.ID, c core.Ctx) error {
	start := time.Now()
	err := translateError(s.engine.RemoveRelationship(base, rel, c))
	s.metrics.RecordWrite("remove_relationship", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_relationship", base, err)
	return err
}

// ReorderRelationship moves one direction of a relationship to a new
// position. The other direction keeps its order.
func (s *Store) ReorderRelationship(ctx context.Context, base, rel core.ID, c core.Ctx, forward bool, pos core.Pos) error {
	start := time.Now()
	err := translateError(s.engine.ReorderRelationship(base, rel, c, forward, pos))
	s.metrics.RecordWrite("reorder_relationship", time.Since(start), err)
	s.logger.LogWrite(ctx, "reorder_relationship", base, err)
	return err
}

// SetRelationshipFlags adds and clears flag bits on both directions.
func (s *Store) SetRelationshipFlags(ctx context.Context, base, rel core.ID, c core.Ctx, add, clear core.Flags) (core.Flags, error) {
	start := time.Now()
	flags, err := s.engine.SetRelationshipFlags(base, rel, c, add, clear)
	err = translateError(err)
	s.metrics.RecordWrite("set_relationship_flags", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_relationship_flags", base, err)
	return flags, err
}

// ---- Tree nodes ----

// CreateNode mints a fresh node id under parent and inserts the node and its
// edge as one atomic unit. parent may be an entity or another node.
func (s *Store) CreateNode(ctx context.Context, parent core.ID, c core.Ctx, value model.Value, pos core.Pos, flags core.Flags) (model.TreeNode, error) {
	start := time.Now()
	node, err := s.engine.CreateNode(parent, c, value, pos, flags)
	err = translateError(err)
	s.metrics.RecordWrite("create_node", time.Since(start), err)
	s.logger.LogWrite(ctx, "create_node", parent, err)
	return node, err
}

// LinkNode adds an extra edge from parent to an existing node, turning the
// tree into a DAG for that child.
func (s *Store) LinkNode(ctx context.Context, parent, child core.ID, c core.Ctx, pos core.Pos) error {
	start := time.Now()
	err := translateError(s.engine.LinkNode(parent, child, c, pos))
	s.metrics.RecordWrite("link_node", time.Since(start), err)
	s.logger.LogWrite(ctx, "link_node", parent, err)
	return err
}

// GetNode returns the live node version, if any.
func (s *Store) GetNode(id core.ID, c core.Ctx) (model.TreeNode, bool) {
	return s.engine.GetNode(id, c)
}

// NodeHistory iterates all versions of a node, oldest first.
func (s *Store) NodeHistory(id core.ID) iter.Seq[model.Version[model.TreeNode]] {
	return s.engine.NodeHistory(id)
}

// UpdateNode replaces the node's value. With a non-nil oldValue the write is
// a compare-and-swap: it fails with ErrConflict unless the live value still
// matches.
func (s *Store) UpdateNode(ctx context.Context, id core.ID, c core.Ctx, value model.Value, oldValue *model.Value) error {
	start := time.Now()
	err := translateError(s.engine.UpdateNode(id, c, value, oldValue))
	s.metrics.RecordWrite("update_node", time.Since(start), err)
	s.logger.LogWrite(ctx, "update_node", id, err)
	return err
}

// IncrementNode adds delta to a numeric node value and returns the new value.
// With a limit the counter saturates instead of crossing it.
func (s *Store) IncrementNode(ctx context.Context, id core.ID, c core.Ctx, delta int64, limit *int64) (int64, error) {
	start := time.Now()
	val, err := s.engine.IncrementNode(id, c, delta, limit)
	err = translateError(err)
	s.metrics.RecordWrite("increment_node", time.Since(start), err)
	s.logger.LogWrite(ctx, "increment_node", id, err)
	return val, err
}

// ListChildren returns the live edges under parent in position order.
func (s *Store) ListChildren(parent core.ID, c core.Ctx, fromPos core.Pos, limit int) []model.TreeEdge {
	return s.engine.ListChildren(parent, c, fromPos, limit)
}

// MoveNode reparents a node by tombstoning the edge under oldParent and
// inserting one under newParent, as one atomic unit.
func (s *Store) MoveNode(ctx context.Context, id core.ID, c core.Ctx, oldParent, newParent core.ID, pos core.Pos) error {
	start := time.Now()
	err := translateError(s.engine.MoveNode(id, c, oldParent, newParent, pos))
	s.metrics.RecordWrite("move_node", time.Since(start), err)
	s.logger.LogWrite(ctx, "move_node", id, err)
	return err
}

// ReorderEdge moves a child edge to a new position under its parent.
func (s *Store) ReorderEdge(ctx context.Context, parent core.ID, c core.Ctx, child core.ID, pos core.Pos) error {
	start := time.Now()
	err := translateError(s.engine.ReorderEdge(parent, c, child, pos))
	s.metrics.RecordWrite("reorder_edge", time.Since(start), err)
	s.logger.LogWrite(ctx, "reorder_edge", parent, err)
	return err
}

// SetNodeFlags adds and clears flag bits on the live node version.
func (s *Store) SetNodeFlags(ctx context.Context, id core.ID, c core.Ctx, add, clear core.Flags) (core.Flags, error) {
	start := time.Now()
	flags, err := s.engine.SetNodeFlags(id, c, add, clear)
	err = translateError(err)
	s.metrics.RecordWrite("set_node_flags", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_node_flags", id, err)
	return flags, err
}

// RemoveNode tombstones the edge from parent, the node itself and,
// recursively, its whole subtree estate.
func (s *Store) RemoveNode(ctx context.Context, id core.ID, c core.Ctx, parent core.ID) error {
	start := time.Now()
	err := translateError(s.engine.RemoveNode(id, c, parent))
	s.metrics.RecordWrite("remove_node", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_node", id, err)
	return err
}

// ---- Names ----

// CreateName appends a name to base's list in the namespace. The same value
// may only appear once among the live names of a list.
func (s *Store) CreateName(ctx context.Context, base core.ID, c core.Ctx, value string, pos core.Pos, flags core.Flags) error {
	start := time.Now()
	err := translateError(s.engine.CreateName(base, c, value, pos, flags))
	s.metrics.RecordWrite("create_name", time.Since(start), err)
	s.logger.LogWrite(ctx, "create_name", base, err)
	return err
}

// ListNames returns the live names of base in position order.
func (s *Store) ListNames(base core.ID, c core.Ctx, fromPos core.Pos, limit int) []model.Name {
	return s.engine.ListNames(base, c, fromPos, limit)
}

// NameHistory iterates all name versions of base, oldest first.
func (s *Store) NameHistory(base core.ID, c core.Ctx) iter.Seq[model.Version[model.Name]] {
	return s.engine.NameHistory(base, c)
}

// ReorderName moves the live name with the given value to a new position in
// base's list.
func (s *Store) ReorderName(ctx context.Context, base core.ID, c core.Ctx, value string, pos core.Pos) error {
	start := time.Now()
	err := translateError(s.engine.ReorderName(base, c, value, pos))
	s.metrics.RecordWrite("reorder_name", time.Since(start), err)
	s.logger.LogWrite(ctx, "reorder_name", base, err)
	return err
}

// RemoveName tombstones the live name with the given value.
func (s *Store) RemoveName(ctx context.Context, base core.ID, c core.Ctx, value string) error {
	start := time.Now()
	err := translateError(s.engine.RemoveName(base, c, value))
	s.metrics.RecordWrite("remove_name", time.Since(start), err)
	s.logger.LogWrite(ctx, "remove_name", base, err)
	return err
}

// SetNameFlags adds and clears flag bits on the live name with the given
// value.
func (s *Store) SetNameFlags(ctx context.Context, base core.ID, c core.Ctx, value string, add, clear core.Flags) (core.Flags, error) {
	start := time.Now()
	flags, err := s.engine.SetNameFlags(base, c, value, add, clear)
	err = translateError(err)
	s.metrics.RecordWrite("set_name_flags", time.Since(start), err)
	s.logger.LogWrite(ctx, "set_name_flags", base, err)
	return flags, err
}
