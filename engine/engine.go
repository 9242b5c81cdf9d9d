package engine

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/strata/core"
	"github.com/hupe1980/strata/phonetic"
	"github.com/hupe1980/strata/sequence"
	"github.com/hupe1980/strata/vtable"
)

// Journal receives every committed mutation in commit order. The WAL
// implements it; a nil journal disables durability.
type Journal interface {
	Append(m Mutation) error
}

// Config carries the engine's construction parameters.
type Config struct {
	// EntityStart/EntityMax bound the entity id sequence. Sharded
	// deployments must hand each engine a disjoint range.
	EntityStart, EntityMax core.ID

	// NodeStart/NodeMax bound the tree node id sequence, a separate
	// identity space from entities.
	NodeStart, NodeMax core.ID

	// Encoder produces phonetic codes for the alias phonetic index.
	// Defaults to phonetic.Default (Soundex).
	Encoder phonetic.Encoder

	// Clock supplies tombstone timestamps. Defaults to time.Now.
	Clock func() time.Time

	// Journal receives committed mutations. May be nil.
	Journal Journal
}

// Engine is the storage core. All exported methods are safe for concurrent
// use; mutations commit atomically under the store lock.
type Engine struct {
	mu sync.RWMutex

	entityIDs *sequence.Allocator
	nodeIDs   *sequence.Allocator

	entities  *vtable.Unique[core.ID, entityRow]
	props     *vtable.Unique[ownerKey, propertyRow]
	aliases   *vtable.List[ownerKey, string, aliasRow]
	aliasHash *vtable.Unique[hashKey, lookupRow]
	prefixes  *prefixIndex
	phonetics *phoneticIndex
	rels      *vtable.List[relKey, core.ID, relRow]
	nodes     *vtable.Unique[core.ID, nodeRow]
	edges     *vtable.List[ownerKey, core.ID, edgeRow]
	names     *vtable.List[ownerKey, string, nameRow]

	encoder phonetic.Encoder
	clock   func() time.Time
	journal Journal
}

// New creates an empty engine.
func New(cfg Config) (*Engine, error) {
	if cfg.EntityStart == 0 {
		cfg.EntityStart = 1
	}
	if cfg.EntityMax == 0 {
		cfg.EntityMax = math.MaxInt64
	}
	if cfg.NodeStart == 0 {
		cfg.NodeStart = 1
	}
	if cfg.NodeMax == 0 {
		cfg.NodeMax = math.MaxInt64
	}
	if cfg.Encoder == nil {
		cfg.Encoder = phonetic.Default
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	entityIDs, err := sequence.New(cfg.EntityStart, cfg.EntityMax)
	if err != nil {
		return nil, fmt.Errorf("entity sequence: %w", err)
	}
	nodeIDs, err := sequence.New(cfg.NodeStart, cfg.NodeMax)
	if err != nil {
		return nil, fmt.Errorf("node sequence: %w", err)
	}

	return &Engine{
		entityIDs: entityIDs,
		nodeIDs:   nodeIDs,
		entities:  vtable.NewUnique[core.ID, entityRow](),
		props:     vtable.NewUnique[ownerKey, propertyRow](),
		aliases:   vtable.NewList[ownerKey, string, aliasRow](false),
		aliasHash: vtable.NewUnique[hashKey, lookupRow](),
		prefixes:  newPrefixIndex(),
		phonetics: newPhoneticIndex(),
		rels:      vtable.NewList[relKey, core.ID, relRow](true),
		nodes:     vtable.NewUnique[core.ID, nodeRow](),
		edges:     vtable.NewList[ownerKey, core.ID, edgeRow](false),
		names:     vtable.NewList[ownerKey, string, nameRow](true),
		encoder:   cfg.Encoder,
		clock:     cfg.Clock,
		journal:   cfg.Journal,
	}, nil
}

// SetJournal attaches the journal after construction. Used during recovery,
// where replayed mutations must not be re-journaled.
func (e *Engine) SetJournal(j Journal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.journal = j
}

// baseExists reports whether a live entity or tree node anchors id.
// Callers hold the lock.
func (e *Engine) baseExists(id core.ID) bool {
	if _, ok := e.entities.QueryLive(id); ok {
		return true
	}
	_, ok := e.nodes.QueryLive(id)
	return ok
}

// commit hands the mutation to the journal. The in-memory state is already
// committed at this point; a journal error is surfaced so callers know
// durability was not achieved, but the write stays visible.
func (e *Engine) commit(m Mutation) error {
	if e.journal == nil {
		return nil
	}
	if err := e.journal.Append(m); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}
